package daemon

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct() error = %v", err)
	}
	return s
}

func TestServerPing(t *testing.T) {
	server := NewServer(zerolog.Nop(), WithVersion("test-version"))

	resp, err := server.Ping(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if got := resp.GetFields()["version"].GetStringValue(); got != "test-version" {
		t.Errorf("version = %q, want %q", got, "test-version")
	}
	if resp.GetFields()["started_at"].GetStringValue() == "" {
		t.Error("started_at should be set")
	}
}

func TestServerExtractVariables(t *testing.T) {
	server := NewServer(zerolog.Nop())

	resp, err := server.ExtractVariables(context.Background(), mustStruct(t, map[string]interface{}{
		"text": "{{b}} {{upper a}} {{b}}",
	}))
	if err != nil {
		t.Fatalf("ExtractVariables() error = %v", err)
	}
	got := stringList(resp.GetFields()["variables"])
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("variables = %v, want [b a]", got)
	}

	resp, err = server.ExtractVariables(context.Background(), mustStruct(t, map[string]interface{}{
		"text": "{{upper a}}",
		"rule": "path",
	}))
	if err != nil {
		t.Fatalf("ExtractVariables(path) error = %v", err)
	}
	if got := stringList(resp.GetFields()["variables"]); len(got) != 1 || got[0] != "upper" {
		t.Errorf("variables = %v, want [upper]", got)
	}
}

func TestServerExtractVariablesInvalid(t *testing.T) {
	server := NewServer(zerolog.Nop())

	tests := []map[string]interface{}{
		{"text": "{{broken"},
		{"text": 42.0},
		{"text": "{{a}}", "rule": "nope"},
	}
	for _, req := range tests {
		_, err := server.ExtractVariables(context.Background(), mustStruct(t, req))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("ExtractVariables(%v) code = %v, want InvalidArgument", req, status.Code(err))
		}
	}
}

func TestServerReconcile(t *testing.T) {
	server := NewServer(zerolog.Nop())

	resp, err := server.Reconcile(context.Background(), mustStruct(t, map[string]interface{}{
		"variables": []interface{}{"b", "c"},
		"values":    map[string]interface{}{"a": "1", "b": "2"},
	}))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	values := resp.GetFields()["values"].GetStructValue().GetFields()
	if len(values) != 2 {
		t.Fatalf("values = %v, want 2 entries", values)
	}
	if values["b"].GetStringValue() != "2" || values["c"].GetStringValue() != "" {
		t.Errorf("values = %v", values)
	}

	_, err = server.Reconcile(context.Background(), mustStruct(t, map[string]interface{}{
		"values": map[string]interface{}{"a": true},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("non-string value code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestServerRender(t *testing.T) {
	server := NewServer(zerolog.Nop())

	resp, err := server.Render(context.Background(), mustStruct(t, map[string]interface{}{
		"text":   "Hi {{name}}, {{upper place}}",
		"values": map[string]interface{}{"name": "Ana", "ignored": "x"},
	}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	f := resp.GetFields()
	if got := f["rendered"].GetStringValue(); got != "Hi Ana, {{place}}" {
		t.Errorf("rendered = %q", got)
	}
	if f["fallback"].GetBoolValue() {
		t.Error("fallback should be false")
	}
	if _, ok := f["values"].GetStructValue().GetFields()["ignored"]; ok {
		t.Error("values outside the template should be dropped")
	}
}

func TestServerRenderFallback(t *testing.T) {
	server := NewServer(zerolog.Nop())

	resp, err := server.Render(context.Background(), mustStruct(t, map[string]interface{}{
		"text": "line\n{{oops",
	}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	f := resp.GetFields()
	if got := f["rendered"].GetStringValue(); got != "line\n{{oops" {
		t.Errorf("rendered = %q, want the text verbatim", got)
	}
	if !f["fallback"].GetBoolValue() {
		t.Error("fallback should be true")
	}
	if f["parse_error"].GetStructValue() == nil {
		t.Error("parse_error should be set")
	}
}
