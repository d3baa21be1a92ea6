package importsource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
)

// Format is a supported feed encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks a format from a file name.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", apperr.Errorf(apperr.Validation, "importsource.DetectFormat",
			"unsupported file type %q (expected .csv or .xlsx)", filepath.Ext(name))
	}
}

// New wraps r in the reader for the given format. For CSV the returned
// reader closes r if it is an io.Closer.
func New(format Format, r io.Reader) (RowReader, error) {
	switch format {
	case FormatCSV:
		return NewCSV(r)
	case FormatXLSX:
		rr, err := NewXLSX(r)
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		return rr, err
	default:
		return nil, apperr.Errorf(apperr.Validation, "importsource.New", "unsupported format %q", format)
	}
}

// FromUpload opens an uploaded file, detecting the format from its name.
func FromUpload(name string, r io.Reader) (RowReader, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	return New(format, r)
}

// Open opens a local file.
func Open(path string) (RowReader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "importsource.Open", err, fmt.Sprintf("cannot open %s", filepath.Base(path)))
	}
	rr, err := New(format, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rr, nil
}

// ObjectGetter is the subset of the S3 client the importer needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, perr := url.Parse(uri)
	if perr != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return "", "", apperr.Errorf(apperr.Validation, "importsource.ParseS3URI", "invalid S3 URI %q", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// OpenS3 streams an object from S3.
func OpenS3(ctx context.Context, client ObjectGetter, uri string) (RowReader, error) {
	const op = "importsource.OpenS3"
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	format, err := DetectFormat(key)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalService, op, err, "could not fetch import file")
	}
	rr, err := New(format, out.Body)
	if err != nil {
		out.Body.Close()
		return nil, err
	}
	return rr, nil
}
