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

// Package hash creates cache keys for request parameters.
package hash

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a key that is the same for equal sets of objects.
// Objects are gob-encoded; those that gob cannot encode, such as
// structs without exported fields or values containing NaN, are
// printed with spew instead.
func Hash(objects ...interface{}) string {
	h := fnv.New128a()
	for _, o := range objects {
		write(h, o)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func write(w io.Writer, o interface{}) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(o); err == nil {
		w.Write(b.Bytes())
		return
	}
	printer.Fprintf(w, "%#v", o)
}
