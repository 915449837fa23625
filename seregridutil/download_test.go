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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMaybeDownloadLocal(t *testing.T) {
	k, cleanup, err := maybeDownload(context.Background(), "/dev/null", helperLog(t))
	cleanup()
	if _, serr := os.Stat("/dev/null"); serr != nil {
		t.Errorf("cleanup removed a local file: %v", serr)
	}
	if err != nil || k != "/dev/null" {
		t.Errorf("expected /dev/null, got %s (%v)", k, err)
	}
}

func TestMaybeDownloadLocal2(t *testing.T) {
	k, _, err := maybeDownload(context.Background(), "/blah/test/", helperLog(t))
	if err != nil || k != "/blah/test/" {
		t.Errorf("expected /blah/test/, got %s (%v)", k, err)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "map.nc"), []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	k, cleanup, err := maybeDownload(context.Background(), srv.URL+"/map.nc", helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "map.nc") {
		t.Errorf("expected tempDir/map.nc, got %s", k)
	}
	b, err := os.ReadFile(k)
	if err != nil || string(b) != "weights" {
		t.Errorf("downloaded contents %q (%v)", b, err)
	}
	cleanup()
	if _, err := os.Stat(filepath.Dir(k)); !os.IsNotExist(err) {
		t.Errorf("download directory not removed: %v", err)
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if k, _, err := maybeDownload(ctx, srv.URL+"/missing.nc", helperLog(t)); err == nil {
		t.Errorf("expected an error, got %s", k)
	}
}

func TestIsBlob(t *testing.T) {
	for path, want := range map[string]bool{
		"gs://bucket/map.nc":   true,
		"s3://bucket/map.nc":   true,
		"file://dir/map.nc":    true,
		"https://host/map.nc":  false,
		"/local/path/map.nc":   false,
		"relative/gs://map.nc": false,
	} {
		if IsBlob(path) != want {
			t.Errorf("IsBlob(%s) != %v", path, want)
		}
	}
}

func TestOpenBucketInvalid(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("expected an error for an unsupported provider")
	}
}
