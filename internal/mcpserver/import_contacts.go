package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hollis/dealflow/internal/ingest"
)

const maxImportSize = 10 << 20 // 10 MB

var mimeToFormat = map[string]string{
	"text/csv": ingest.FormatCSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ingest.FormatXLSX,
}

type importResult struct {
	Parsed  int `json:"parsed"`
	Created int `json:"created"`
}

func (s *Server) registerImportTool() {
	s.mcp.AddTool(mcp.NewTool("import_contacts",
		mcp.WithDescription("Bulk-import contacts from a CSV or XLSX spreadsheet. "+
			"Provide either inline CSV content, or a url (http/https, or a base64 data URI). "+
			"The sheet needs a header row with at least a name column; company, email, "+
			"phone and last_contact_date columns are picked up when present."),
		mcp.WithString("content", mcp.Description("Inline CSV content (header row first)")),
		mcp.WithString("url", mcp.Description("Spreadsheet location: http/https URL or data URI")),
	), s.importContacts)
}

func (s *Server) importContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.importer == nil {
		return mcp.NewToolResultError("import is not configured"), nil
	}

	var data []byte
	format := ingest.FormatCSV

	if content, err := req.RequireString("content"); err == nil && content != "" {
		data = []byte(content)
	} else {
		rawURL, uErr := req.RequireString("url")
		if uErr != nil {
			return mcp.NewToolResultError("either content or url is required"), nil
		}
		var fErr error
		if strings.HasPrefix(rawURL, "data:") {
			data, format, fErr = decodeDataURI(rawURL)
		} else {
			data, format, fErr = fetchHTTP(rawURL)
		}
		if fErr != nil {
			return mcp.NewToolResultError(fErr.Error()), nil
		}
	}

	if len(data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImportSize)), nil
	}

	drafts, err := ingest.ParseContacts(bytes.NewReader(data), format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created := s.importer.Import(ctx, drafts)
	out, _ := json.Marshal(importResult{Parsed: len(drafts), Created: created})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	format, ok := mimeToFormat[mime]
	if !ok {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s (allowed: text/csv, xlsx)", mime)
	}
	return data, format, nil
}

// fetchHTTP downloads a spreadsheet from an HTTP/HTTPS URL with security checks.
func fetchHTTP(rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxImportSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxImportSize)
	}

	format := ingest.FormatCSV
	if strings.HasSuffix(strings.ToLower(parsed.Path), ".xlsx") {
		format = ingest.FormatXLSX
	} else if ct := resp.Header.Get("Content-Type"); ct != "" {
		if f, ok := mimeToFormat[strings.Split(ct, ";")[0]]; ok {
			format = f
		}
	}
	return data, format, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
