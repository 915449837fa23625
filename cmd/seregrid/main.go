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

// Command seregrid regrids spectral-element model output to regular
// latitude-longitude grids.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/seregrid/seregridutil"
)

func main() {
	if seregridutil.GUIRequested(os.Args[1:]) {
		seregridutil.StartWebServer()
		return
	}
	if err := seregridutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
