package provider

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct{ name string }

func (s *stubProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Content: "stub"}, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	r.RegisterFactory("stub", func(config map[string]any) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	})
	r.RegisterFactory("failing", func(config map[string]any) (Provider, error) {
		return nil, errors.New("bad config")
	})

	if !r.Has("stub") {
		t.Error("Has(stub) = false after registration")
	}
	if r.Has("nope") {
		t.Error("Has(nope) = true")
	}

	p, err := r.New("stub", nil)
	if err != nil {
		t.Fatalf("New(stub): %v", err)
	}
	if p.Name() != "stub" {
		t.Errorf("Name = %q, want stub", p.Name())
	}

	if _, err := r.New("failing", nil); err == nil {
		t.Error("New(failing) must surface the factory error")
	}
	if _, err := r.New("unregistered", nil); err == nil {
		t.Error("New(unregistered) must fail")
	}

	names := r.List()
	if len(names) != 2 || names[0] != "failing" || names[1] != "stub" {
		t.Errorf("List = %v, want [failing stub]", names)
	}
}

func TestGlobalRegistryHasBuiltins(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "vertexai"} {
		if !Has(name) {
			t.Errorf("built-in provider %q not registered", name)
		}
	}
}

func TestGeminiFactoryRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := New("gemini", nil); err == nil {
		t.Error("gemini factory must fail without an API key")
	}

	t.Setenv("GEMINI_API_KEY", "from-env")
	if _, err := New("gemini", nil); err != nil {
		t.Errorf("gemini factory with env key: %v", err)
	}

	if _, err := New("gemini", map[string]any{"api_key": "inline"}); err != nil {
		t.Errorf("gemini factory with inline key: %v", err)
	}
}

func TestProviderErrorRetryability(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrorCodeRateLimit, true},
		{ErrorCodeServerError, true},
		{ErrorCodeTimeout, true},
		{ErrorCodeAuthentication, false},
		{ErrorCodeInvalidRequest, false},
		{ErrorCodeContentFiltered, false},
	}

	for _, tt := range tests {
		err := NewProviderError("test", tt.code, "msg", nil)
		if err.IsRetryable != tt.retryable {
			t.Errorf("%s retryable = %v, want %v", tt.code, err.IsRetryable, tt.retryable)
		}
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewProviderError("test", ErrorCodeServerError, "wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("ProviderError must unwrap to its cause")
	}
}
