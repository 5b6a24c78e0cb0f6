package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultAppName = "default"

// Delivery is one file plus the metadata the sink indexes with it.
type Delivery struct {
	Path        string
	MediaType   string
	Owner       string
	ModifiedAt  time.Time
	Permissions string
	Size        int64
}

// Client talks to the search app indexing endpoint. It never retries.
type Client struct {
	client    *http.Client
	baseURL   string
	appName   string
	schema    string
	searchKey string
	appKey    string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

func WithAppName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.appName = name
		}
	}
}

func New(baseURL, schema, searchKey, appKey string, opts ...Option) (*Client, error) {
	switch {
	case searchKey == "":
		return nil, ErrMissingSearchKey
	case appKey == "":
		return nil, ErrMissingAppKey
	case baseURL == "":
		return nil, ErrMissingBaseURL
	}

	client := &Client{
		client:    &http.Client{Timeout: 60 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		appName:   defaultAppName,
		schema:    schema,
		searchKey: searchKey,
		appKey:    appKey,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *Client) IndexURL() string {
	return fmt.Sprintf("%s/_search/%s/%s", c.baseURL, c.appName, c.schema)
}

func (c *Client) MappingURL() string {
	return fmt.Sprintf("%s/_search/%s/_mapping/%s", c.baseURL, c.appName, c.schema)
}

type fieldType struct {
	Type     string `json:"type"`
	IsSearch bool   `json:"is_search,omitempty"`
	IsFacet  bool   `json:"is_facet"`
}

type schemaMapping struct {
	Title     string               `json:"title"`
	Display   string               `json:"display"`
	Datatypes map[string]fieldType `json:"datatypes"`
}

func defaultMapping() schemaMapping {
	return schemaMapping{
		Title:   "filename",
		Display: "file_owner",
		Datatypes: map[string]fieldType{
			"filename":      {Type: "string", IsSearch: true, IsFacet: true},
			"file_owner":    {Type: "string", IsSearch: true, IsFacet: true},
			"file_modified": {Type: "date"},
			"file_perms":    {Type: "string"},
			"file_size":     {Type: "integer"},
		},
	}
}

// InitSchema posts the field layout deliveries rely on. Call it once per
// process before the first Deliver.
func (c *Client) InitSchema(ctx context.Context) error {
	body, err := json.Marshal(defaultMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal schema mapping: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.MappingURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build schema request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Deliver streams the file at d.Path to the sink as multipart form data.
// The body is produced while the request is in flight, so the file is
// never buffered in memory.
func (c *Client) Deliver(ctx context.Context, d Delivery) error {
	file, err := os.Open(d.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s for delivery: %w", d.Path, err)
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		defer file.Close()
		writer.CloseWithError(writeForm(form, file, d))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.IndexURL(), reader)
	if err != nil {
		reader.CloseWithError(err)
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	err = c.do(req)
	// Unblocks the writer goroutine when the request ended early.
	reader.CloseWithError(io.ErrClosedPipe)
	return err
}

func writeForm(form *multipart.Writer, file io.Reader, d Delivery) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, d.Path))
	mediaType := d.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header.Set("Content-Type", mediaType)

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to stream %s: %w", d.Path, err)
	}

	fields := [][2]string{
		{"owner", d.Owner},
		{"modified", d.ModifiedAt.UTC().Format(time.RFC3339)},
		{"file_perms", d.Permissions},
		{"file_size", strconv.FormatInt(d.Size, 10)},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}

	return form.Close()
}

func (c *Client) do(req *http.Request) error {
	req.SetBasicAuth(c.searchKey, c.appKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Kind: Unreachable, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			Kind:   SinkRejected,
			Status: resp.StatusCode,
			Reason: reason(resp),
			URL:    req.URL.String(),
		}
	}
	return nil
}

// reason prefers the server's reason phrase over the canonical one.
func reason(resp *http.Response) string {
	if phrase := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); phrase != "" && phrase != resp.Status {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}
