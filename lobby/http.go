package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPService talks to a rendezvous daemon speaking the REST contract under
// /v1. Status codes map onto the structured sentinels: 429 is ErrRateLimited,
// 404 is ErrSessionNotFound, 409 is ErrSessionFull.
type HTTPService struct {
	base   string
	client *http.Client
}

func NewHTTPService(base string) *HTTPService {
	return &HTTPService{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionListResponse struct {
	Sessions []*Session `json:"sessions"`
}

type createSessionRequest struct {
	Name        string      `json:"name"`
	Participant Participant `json:"participant"`
}

type joinSessionRequest struct {
	Participant Participant `json:"participant"`
}

type updateDataRequest struct {
	Data map[string]string `json:"data"`
}

func (s *HTTPService) Query(ctx context.Context) ([]*Session, error) {
	var out sessionListResponse
	if err := s.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (s *HTTPService) Create(ctx context.Context, name string, self Participant) (*Session, error) {
	var out Session
	err := s.do(ctx, http.MethodPost, "/v1/sessions", createSessionRequest{Name: name, Participant: self}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) Join(ctx context.Context, sessionID string, self Participant) (*Session, error) {
	var out Session
	path := fmt.Sprintf("/v1/sessions/%s/join", sessionID)
	if err := s.do(ctx, http.MethodPost, path, joinSessionRequest{Participant: self}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) Get(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	if err := s.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) Update(ctx context.Context, sessionID string, data map[string]string) (*Session, error) {
	var out Session
	path := fmt.Sprintf("/v1/sessions/%s/data", sessionID)
	if err := s.do(ctx, http.MethodPatch, path, updateDataRequest{Data: data}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) SetParticipant(ctx context.Context, sessionID string, p Participant) (*Session, error) {
	var out Session
	path := fmt.Sprintf("/v1/sessions/%s/participants/%s", sessionID, p.ID)
	if err := s.do(ctx, http.MethodPut, path, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) Heartbeat(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/v1/sessions/%s/heartbeat", sessionID)
	return s.do(ctx, http.MethodPost, path, nil, nil)
}

func (s *HTTPService) Leave(ctx context.Context, sessionID, participantID string) error {
	path := fmt.Sprintf("/v1/sessions/%s/participants/%s", sessionID, participantID)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

func (s *HTTPService) Delete(ctx context.Context, sessionID string) error {
	return s.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}

func (s *HTTPService) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusNotFound:
		return ErrSessionNotFound
	case code == http.StatusConflict:
		return ErrSessionFull
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// HTTPRelay speaks the relay half of the daemon's REST contract.
type HTTPRelay struct {
	base   string
	client *http.Client
}

func NewHTTPRelay(base string) *HTTPRelay {
	return &HTTPRelay{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type allocationRequest struct {
	MaxConnections int `json:"maxConnections"`
}

type allocationResponse struct {
	ID         string     `json:"id"`
	Credential Credential `json:"credential"`
}

type joinCodeResponse struct {
	Code string `json:"code"`
}

type joinRelayRequest struct {
	Code string `json:"code"`
}

type joinRelayResponse struct {
	Credential Credential `json:"credential"`
}

func (r *HTTPRelay) CreateAllocation(ctx context.Context, maxConnections int) (Allocation, error) {
	var out allocationResponse
	if err := r.do(ctx, http.MethodPost, "/v1/allocations", allocationRequest{MaxConnections: maxConnections}, &out); err != nil {
		return Allocation{}, err
	}
	return Allocation{ID: out.ID, Credential: out.Credential}, nil
}

func (r *HTTPRelay) JoinCode(ctx context.Context, allocationID string) (string, error) {
	var out joinCodeResponse
	path := fmt.Sprintf("/v1/allocations/%s/code", allocationID)
	if err := r.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (r *HTTPRelay) Join(ctx context.Context, code string) (Credential, error) {
	var out joinRelayResponse
	if err := r.do(ctx, http.MethodPost, "/v1/join", joinRelayRequest{Code: code}, &out); err != nil {
		return Credential{}, err
	}
	return out.Credential, nil
}

func (r *HTTPRelay) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
