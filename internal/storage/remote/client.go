// Package remote talks to an ironledger-server over its REST API
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 30 * time.Second

var errNoServer = errors.New("no server url configured")

// Option configures a Store
type Option func(*Store)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// Store is a storage.Backend backed by the ironledger REST API
type Store struct {
	serverURL  string
	httpClient *http.Client
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.SnapshotLoader   = (*Store)(nil)
	_ storage.SnapshotReplacer = (*Store)(nil)
)

// New creates a client for the server at serverURL
func New(serverURL string, opts ...Option) (*Store, error) {
	if serverURL == "" {
		return nil, errNoServer
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", serverURL)
	}
	s := &Store{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Name() string                { return "remote" }
func (s *Store) Policy() storage.WritePolicy { return storage.Confirmed }

// Close drops idle keep-alive connections
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// HealthCheck asks the server whether it and its database are up
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// ListAll fetches one collection
func (s *Store) ListAll(ctx context.Context, entity model.Entity) ([]model.Record, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	var raw json.RawMessage
	if err := s.do(ctx, http.MethodGet, "/api/v1/"+string(entity), nil, &raw); err != nil {
		return nil, err
	}
	snap := &model.Snapshot{}
	if err := decodeInto(snap, entity, raw); err != nil {
		return nil, err
	}
	return snap.Records(entity), nil
}

// LoadSnapshot fetches all three collections in one request
func (s *Store) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := s.do(ctx, http.MethodGet, "/api/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	if snap.Clients == nil {
		snap.Clients = []model.Client{}
	}
	if snap.Projects == nil {
		snap.Projects = []model.Project{}
	}
	if snap.Payments == nil {
		snap.Payments = []model.Payment{}
	}
	return &snap, nil
}

// Create posts rec and returns the record as the server stored it
func (s *Store) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	return s.write(ctx, http.MethodPost, "/api/v1/"+string(rec.Entity()), rec)
}

// Update replaces the record with rec's id
func (s *Store) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	return s.write(ctx, http.MethodPut, recordPath(rec.Entity(), rec.RecordID()), rec)
}

// Delete removes one record. The server cascades to dependents.
func (s *Store) Delete(ctx context.Context, entity model.Entity, id string) error {
	return s.do(ctx, http.MethodDelete, recordPath(entity, id), nil, nil)
}

// ResetAll asks the server to wipe every collection. Servers started
// without resets enabled answer with model.ErrResetRefused.
func (s *Store) ResetAll(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/api/v1/reset", nil, nil)
}

// ReplaceAll sends snap as the new contents of every collection in one
// request. Servers without the bulk endpoint get a reset and one create per
// record instead.
func (s *Store) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	err := s.do(ctx, http.MethodPut, "/api/v1/snapshot", snap, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusMethodNotAllowed {
		return storage.Mirror(ctx, snap, s)
	}
	return err
}

func recordPath(entity model.Entity, id string) string {
	return "/api/v1/" + string(entity) + "/" + url.PathEscape(id)
}

func (s *Store) write(ctx context.Context, method, path string, rec model.Record) (model.Record, error) {
	var raw json.RawMessage
	if err := s.do(ctx, method, path, rec, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(rec.Entity(), raw)
}

// do sends a JSON request and decodes a JSON response into out when non-nil
func (s *Store) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.Unavailable(fmt.Errorf("failed to connect: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// APIError is a non-success answer from the server
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func statusError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path, Message: msg}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", model.ErrNotFound, apiErr)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %w", model.ErrAlreadyExists, apiErr)
	case resp.StatusCode == http.StatusForbidden && (strings.HasSuffix(path, "/reset") || strings.HasSuffix(path, "/snapshot")):
		return fmt.Errorf("%w: %w", model.ErrResetRefused, apiErr)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", model.ErrMalformedImport, apiErr)
	case resp.StatusCode >= 500:
		return model.Unavailable(apiErr)
	default:
		return apiErr
	}
}

func decodeRecord(entity model.Entity, raw json.RawMessage) (model.Record, error) {
	var (
		rec model.Record
		err error
	)
	switch entity {
	case model.EntityClient:
		var c model.Client
		err = json.Unmarshal(raw, &c)
		rec = c
	case model.EntityProject:
		var p model.Project
		err = json.Unmarshal(raw, &p)
		rec = p
	case model.EntityPayment:
		var p model.Payment
		err = json.Unmarshal(raw, &p)
		rec = p
	default:
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", entity, err)
	}
	return rec, nil
}

func decodeInto(snap *model.Snapshot, entity model.Entity, raw json.RawMessage) error {
	var err error
	switch entity {
	case model.EntityClient:
		err = json.Unmarshal(raw, &snap.Clients)
	case model.EntityProject:
		err = json.Unmarshal(raw, &snap.Projects)
	case model.EntityPayment:
		err = json.Unmarshal(raw, &snap.Payments)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", entity, err)
	}
	return nil
}
