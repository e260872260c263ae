// Package erp is an HTTP client for the Frappe-style document API the CRM sits on.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iota-uz/crm-exchange/pkg/configuration"
)

type Config struct {
	BaseURL         string
	Authorization   string
	Timeout         time.Duration
	RequestIDHeader string
	ImportType      string

	SubmitImportPath     string
	StartImportPath      string
	LinkedDocsPath       string
	RemoveLinkedDocsPath string
	ResourcePathPrefix   string
}

// ConfigFrom builds a client config from the process configuration.
func ConfigFrom(conf *configuration.Configuration) Config {
	return Config{
		BaseURL:              conf.ERP.BaseURL,
		Authorization:        conf.ERP.Authorization(),
		Timeout:              conf.ERP.RequestTimeout,
		RequestIDHeader:      conf.RequestIDHeader,
		ImportType:           conf.ERP.ImportType,
		SubmitImportPath:     conf.ERP.SubmitImportPath,
		StartImportPath:      conf.ERP.StartImportPath,
		LinkedDocsPath:       conf.ERP.LinkedDocsPath,
		RemoveLinkedDocsPath: conf.ERP.RemoveLinkedDocsPath,
		ResourcePathPrefix:   conf.ERP.ResourcePathPrefix,
	}
}

type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid erp base url: %q", cfg.BaseURL)
	}
	if cfg.ImportType == "" {
		cfg.ImportType = "Insert New Records"
	}
	if cfg.ResourcePathPrefix == "" {
		cfg.ResourcePathPrefix = "/api/resource"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		cfg:     cfg,
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// envelope is the {"message": ...} wrapper around whitelisted method results.
type envelope struct {
	Message json.RawMessage `json:"message"`
}

func (c *Client) do(ctx context.Context, operation, method, path string, body io.Reader, contentType string, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		requestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}()

	u := *c.baseURL
	base := strings.TrimRight(u.Path, "/")
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		outcome = "error"
		return errors.Wrap(err, "request path")
	}
	u.Path = base + unescaped
	u.RawPath = base + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		outcome = "error"
		return errors.Wrap(err, "http request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	if c.cfg.RequestIDHeader != "" {
		req.Header.Set(c.cfg.RequestIDHeader, requestID)
	}
	if c.cfg.Authorization != "" {
		req.Header.Set("Authorization", c.cfg.Authorization)
	}

	logger := c.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"method":     method,
		"path":       u.Path,
		"request-id": requestID,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "error"
		logger.WithError(err).Warn("erp request failed")
		return errors.Wrap(err, operation)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "error"
		return errors.Wrap(err, "http read")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = "rejected"
		apiErr := decodeError(resp.StatusCode, respBody)
		logger.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"exc_type": apiErr.ExcType,
		}).Warn(apiErr.Error())
		return apiErr
	}
	logger.WithField("status", resp.StatusCode).WithField("duration", time.Since(start)).Debug("erp request done")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		outcome = "error"
		return errors.Wrap(err, "json unmarshal response")
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, operation, path string, reqBody any, out any) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "json marshal request")
	}
	return c.do(ctx, operation, http.MethodPost, path, bytes.NewReader(b), "application/json", out)
}

type UnmappedColumn struct {
	ColumnName     string  `json:"column_name"`
	SuggestedField *string `json:"suggested_field"`
}

type ImportRequest struct {
	Doctype        string
	Company        string
	FileName       string
	Data           []byte
	ManualMappings map[string]string
}

type ImportResponse struct {
	UnmappedColumns []UnmappedColumn `json:"unmapped_columns"`
	Name            string           `json:"name"`
	DataImportName  string           `json:"data_import_name"`
}

// SubmitImport uploads the file as multipart form data. A non-empty manual
// mapping is sent as a JSON object under manual_mapping.
func (c *Client) SubmitImport(ctx context.Context, r ImportRequest) (ImportResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"reference_doctype", r.Doctype},
		{"import_type", c.cfg.ImportType},
		{"company", r.Company},
	}
	if len(r.ManualMappings) > 0 {
		m, err := json.Marshal(r.ManualMappings)
		if err != nil {
			return ImportResponse{}, errors.Wrap(err, "marshal manual mapping")
		}
		fields = append(fields, [2]string{"manual_mapping", string(m)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return ImportResponse{}, errors.Wrap(err, "write form field")
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(r.FileName)))
	h.Set("Content-Type", mimetype.Detect(r.Data).String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return ImportResponse{}, errors.Wrap(err, "create file part")
	}
	if _, err := part.Write(r.Data); err != nil {
		return ImportResponse{}, errors.Wrap(err, "write file part")
	}
	if err := mw.Close(); err != nil {
		return ImportResponse{}, errors.Wrap(err, "close multipart")
	}

	var env envelope
	if err := c.do(ctx, "submit_import", http.MethodPost, c.cfg.SubmitImportPath, &buf, mw.FormDataContentType(), &env); err != nil {
		return ImportResponse{}, err
	}
	var out ImportResponse
	if len(env.Message) > 0 && string(env.Message) != "null" {
		if err := json.Unmarshal(env.Message, &out); err != nil {
			return ImportResponse{}, errors.Wrap(err, "decode import response")
		}
	}
	return out, nil
}

func (c *Client) StartImport(ctx context.Context, reference string) error {
	return c.postJSON(ctx, "start_import", c.cfg.StartImportPath, map[string]string{"data_import": reference}, nil)
}

type LinkedDoc struct {
	ReferenceDoctype string `json:"reference_doctype"`
	ReferenceDocname string `json:"reference_docname"`
}

func (c *Client) GetLinkedDocs(ctx context.Context, doctype, docname string) ([]LinkedDoc, error) {
	var env envelope
	req := map[string]string{"doctype": doctype, "docname": docname}
	if err := c.postJSON(ctx, "get_linked_docs", c.cfg.LinkedDocsPath, req, &env); err != nil {
		return nil, err
	}
	var docs []LinkedDoc
	if len(env.Message) > 0 && string(env.Message) != "null" {
		if err := json.Unmarshal(env.Message, &docs); err != nil {
			return nil, errors.Wrap(err, "decode linked docs")
		}
	}
	return docs, nil
}

type DocRef struct {
	Doctype string `json:"doctype"`
	Docname string `json:"docname"`
}

// RemoveLinkedDocRefs clears the link fields only; the referencing documents are kept.
func (c *Client) RemoveLinkedDocRefs(ctx context.Context, items []DocRef) error {
	req := struct {
		Items         []DocRef `json:"items"`
		RemoveContact bool     `json:"remove_contact"`
		Delete        bool     `json:"delete"`
	}{Items: items}
	return c.postJSON(ctx, "remove_linked_doc_ref", c.cfg.RemoveLinkedDocsPath, req, nil)
}

func (c *Client) DeleteDoc(ctx context.Context, doctype, name string) error {
	path := strings.TrimRight(c.cfg.ResourcePathPrefix, "/") + "/" + url.PathEscape(doctype) + "/" + url.PathEscape(name)
	return c.do(ctx, "delete_doc", http.MethodDelete, path, nil, "", nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
