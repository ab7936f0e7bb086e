package pinning

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// IPFSStore adds files through the IPFS HTTP API (/api/v0/add), as served by Kubo nodes and Infura.
type IPFSStore struct {
	client    *http.Client
	apiURL    string
	projectID string
	secret    string
}

type IPFSOption func(*IPFSStore)

// WithBasicAuth sets the project credentials hosted pinning services require.
func WithBasicAuth(projectID, secret string) IPFSOption {
	return func(s *IPFSStore) {
		s.projectID = strings.TrimSpace(projectID)
		s.secret = strings.TrimSpace(secret)
	}
}

func WithHTTPClient(c *http.Client) IPFSOption {
	return func(s *IPFSStore) { s.client = c }
}

func NewIPFSStore(apiURL string, opts ...IPFSOption) *IPFSStore {
	apiURL = strings.TrimSpace(apiURL)
	apiURL = strings.TrimRight(apiURL, "/")

	s := &IPFSStore{
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		apiURL: apiURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

var errAddFinished = errors.New("ipfs add finished")

type apiError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

func (s *IPFSStore) Add(ctx context.Context, name string, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	if s.apiURL == "" {
		return "", errors.New("ipfs api url is empty")
	}
	if name == "" {
		name = "blob"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// the writer reports progress; it must be gone before Add returns,
	// including when the node answers before reading the whole body
	done := make(chan struct{})
	defer func() {
		_ = pr.CloseWithError(errAddFinished)
		<-done
	}()

	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: r, total: size, fn: onProgress}
		if _, err := io.Copy(part, src); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/add?pin=true", pr)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.projectID != "" {
		req.SetBasicAuth(s.projectID, s.secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "ipfs add")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read ipfs response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", errors.Newf("ipfs add failed: status=%d: %s", resp.StatusCode, apiErr.Message)
		}
		return "", errors.Newf("ipfs add failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// the node may stream one object per line; the last one is the added file
	var added addResponse
	dec := json.NewDecoder(strings.NewReader(string(body)))
	for dec.More() {
		var next addResponse
		if err := dec.Decode(&next); err != nil {
			return "", errors.Wrapf(err, "decode ipfs response body=%s", string(body))
		}
		if next.Hash != "" {
			added = next
		}
	}
	if added.Hash == "" {
		return "", errors.Newf("ipfs response has empty hash body=%s", string(body))
	}

	log.Info("ipfs add ok", "name", name, "cid", added.Hash, "size", size)
	return added.Hash, nil
}
