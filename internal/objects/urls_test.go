package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportPDFURL_RoundTrip(t *testing.T) {
	name := "ビットコイン 2024.pdf"
	u := ReportPDFURL(name)

	assert.True(t, IsObjectURL(u))
	assert.Contains(t, u, "https://storage.replit.com/v1/ReportPDFs/")
	assert.NotContains(t, u, " ")
	assert.Equal(t, name, FileNameFromURL(u))
}

func TestFileNameFromURL_NotObjectURL(t *testing.T) {
	assert.Equal(t, "", FileNameFromURL("https://example.com/file.pdf"))
	assert.False(t, IsObjectURL("https://example.com/v1/ReportPDFs/a.pdf"))
}

func TestKey(t *testing.T) {
	tests := []struct {
		in     string
		key    string
		direct bool
	}{
		{ReportPDFURL("a.pdf"), "a.pdf", false},
		{"https://cdn.example.com/a.pdf", "", true},
		{"/api/files/3", "", true},
		{"reports/btc.pdf", "reports/btc.pdf", false},
	}
	for _, tt := range tests {
		key, direct := Key(tt.in)
		assert.Equal(t, tt.key, key, tt.in)
		assert.Equal(t, tt.direct, direct, tt.in)
	}
}
