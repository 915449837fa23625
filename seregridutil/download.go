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
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// maxRetries is the number of times a failed download is retried.
const maxRetries = 4

// maybeDownload checks if path is an existing local file. If not, and
// path is a URL or blob location, it downloads the file and returns
// the path to the downloaded copy. Other paths are returned unchanged.
// The returned cleanup function removes any downloaded copy.
func maybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (local string, cleanup func(), err error) {
	cleanup = func() {}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, cleanup, nil
	}
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") && !IsBlob(path) {
		return path, cleanup, nil
	}
	dir, err := ioutil.TempDir("", "seregrid")
	if err != nil {
		return "", cleanup, fmt.Errorf("seregridutil: creating temporary download directory: %v", err)
	}
	local = filepath.Join(dir, filepath.Base(path))

	get := downloadHTTP
	if IsBlob(path) {
		get = downloadBlob
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	err = backoff.RetryNotify(
		func() error { return get(ctx, path, local) },
		b,
		func(err error, d time.Duration) {
			log.WithField("location", path).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		os.RemoveAll(dir)
		return "", cleanup, fmt.Errorf("seregridutil: downloading %s: %v", path, err)
	}
	log.WithFields(logrus.Fields{"location": path, "file": local}).Debug("downloaded file")
	return local, func() { os.RemoveAll(dir) }, nil
}

// downloadHTTP downloads the file at URL path to local.
func downloadHTTP(ctx context.Context, path, local string) error {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return writeFile(local, resp.Body)
}

func writeFile(local string, r io.Reader) error {
	w, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name'.
// The accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("seregridutil.OpenBucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Hostname())
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("seregridutil.OpenBucket: invalid provider %s", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket using the AWS_REGION,
// AWS_ACCESS_KEY_ID, and AWS_SECRET_ACCESS_KEY environment variables.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob copies the blob at path to local.
func downloadBlob(ctx context.Context, path, local string) error {
	u, err := url.Parse(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return err
	}
	r, err := bucket.NewReader(ctx, strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return err
	}
	defer r.Close()
	return writeFile(local, r)
}
