package objects

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// ObjectStorageBase prefixes every public object-storage URL.
	ObjectStorageBase = "https://storage.replit.com/v1/"
	// ReportBucket holds the report PDFs.
	ReportBucket = "ReportPDFs"
)

var objectPathRe = regexp.MustCompile(`/v1/[^/]+/(.+)$`)

// ObjectURL builds the URL of name in bucket. The name is escaped so
// non-ASCII file names survive.
func ObjectURL(bucket, name string) string {
	return ObjectStorageBase + bucket + "/" + url.PathEscape(name)
}

// ReportPDFURL is ObjectURL in the report bucket.
func ReportPDFURL(name string) string {
	return ObjectURL(ReportBucket, name)
}

// FileNameFromURL returns the decoded object name from an object-storage
// URL, or "" if u is not one.
func FileNameFromURL(u string) string {
	m := objectPathRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	name, err := url.PathUnescape(m[1])
	if err != nil {
		return m[1]
	}
	return name
}

// IsObjectURL reports whether u points into object storage.
func IsObjectURL(u string) bool {
	return strings.HasPrefix(u, ObjectStorageBase)
}
