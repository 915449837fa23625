/*
Copyright © 2025 the SERegrid authors.
This file is part of SERegrid.

SERegrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SERegrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SERegrid.  If not, see <http://www.gnu.org/licenses/>.
*/


package seregridutil

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/ioutil"
	"net/http"

	"github.com/ctessum/gobra"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// GUIAddress is the address the graphical interface is served at.
const GUIAddress = "localhost:7272"

// setConfigHandler reads the configuration file given by the "config"
// form value and responds with the resulting option values as JSON.
func setConfigHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	Cfg.Set("config", r.Form.Get("config"))
	if err := setConfig(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	config := make(map[string]interface{})
	for _, option := range options {
		config[option.name] = Cfg.Get(option.name)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

const guiTemplate = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>SERegrid</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
	</style>
</head>
<body>
<div class="container">
	<h1>SERegrid</h1>
	<p>Choose a command and set its options below. Options in
	<font color="green">green</font> were read from the configuration file.</p>
	<div>
		{{.}}
	</div>
</div>
<script>
let allFlags = [...document.querySelectorAll('[data-name]')];
let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("/setConfig?config=" + encodeURIComponent(configInput.value))
		.then(res => {
			if (res.status !== 200) {
				configInput.classList.remove("green-border");
				configInput.classList.add("red-border");
				return;
			}
			res.json().then(data => {
				configInput.classList.remove("red-border");
				for (let key in data)
					for (let f of allFlags)
						if (f.dataset.name == key && data[key] !== null) {
							let input = f.children[0];
							let v = JSON.stringify(data[key]).replace(/^"+|"+$/g, '');
							if (input.value != v) {
								input.value = v;
								input.classList.add("green-border");
							}
						}
			})
		})
		.catch(err => console.log("Error fetching /setConfig", err))
})
</script>
</body>
</html>`

// GUIRequested reports whether the command line args, without the
// program name, give no command, so that the graphical interface should
// be served. Global flags such as --config may be given; they are applied
// before the interface starts.
func GUIRequested(args []string) bool {
	fs := pflag.NewFlagSet("seregrid", pflag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.AddFlagSet(Root.PersistentFlags())
	if err := fs.Parse(args); err != nil {
		return false
	}
	return fs.NArg() == 0
}

// StartWebServer serves a graphical interface to the commands in Root
// and opens it in a browser. It blocks until the server exits.
func StartWebServer() {
	if err := setConfig(); err != nil {
		logrus.WithError(err).Warn("Ignoring configuration")
	}
	http.HandleFunc("/setConfig", setConfigHandler)

	for _, cmd := range append([]*cobra.Command{Root}, Root.Commands()...) {
		cmd.SilenceUsage = true
	}

	output := template.Must(template.New("").Parse(guiTemplate))
	server := gobra.Server{Root: Root, ServerAddress: GUIAddress, AllowCORS: false, HTML: output}
	logrus.Info("Server starting")
	if err := open.Run("http://" + GUIAddress); err != nil {
		logrus.WithError(err).Debug("Opening browser")
	}
	fmt.Printf("If not opened automatically, please visit http://%s\n", GUIAddress)
	server.Start()
}
