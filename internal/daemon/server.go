package daemon

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// Server implements TemplateServiceServer.
type Server struct {
	logger    zerolog.Logger
	renderer  templates.Renderer
	startedAt time.Time
	hostname  string
	version   string
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithVersion sets the reported version.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithRenderer sets the default rule and escaping for requests that do not
// choose their own.
func WithRenderer(renderer templates.Renderer) ServerOption {
	return func(s *Server) {
		s.renderer = renderer
	}
}

// NewServer creates the template service implementation.
func NewServer(logger zerolog.Logger, opts ...ServerOption) *Server {
	hostname, _ := os.Hostname()

	s := &Server{
		logger:    logger,
		startedAt: time.Now(),
		hostname:  hostname,
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports daemon identity and uptime.
func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"version":        s.version,
		"hostname":       s.hostname,
		"started_at":     s.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	})
}

// ExtractVariables returns the variables of "text".
func (s *Server) ExtractVariables(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	renderer, err := s.requestRenderer(req)
	if err != nil {
		return nil, err
	}
	text, err := stringField(req, "text")
	if err != nil {
		return nil, err
	}

	names, err := templates.Extractor{Rule: renderer.Rule}.Extract(text)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return structpb.NewStruct(map[string]interface{}{
		"variables": stringsToList(names),
	})
}

// Reconcile rebuilds a value map for a new variable list.
func (s *Server) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	names, err := listField(req, "variables")
	if err != nil {
		return nil, err
	}
	values, err := mapField(req, "values")
	if err != nil {
		return nil, err
	}

	store := templates.Reconcile(names, templates.NewStore(sortedKeys(values), values))
	return storeResponse(store, nil)
}

// Render renders "text" with "values". A template that cannot be rendered is
// not an RPC failure: the text comes back verbatim with "fallback" set.
func (s *Server) Render(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	renderer, err := s.requestRenderer(req)
	if err != nil {
		return nil, err
	}
	text, err := stringField(req, "text")
	if err != nil {
		return nil, err
	}
	values, err := mapField(req, "values")
	if err != nil {
		return nil, err
	}

	resp := map[string]interface{}{}
	names, extractErr := templates.Extractor{Rule: renderer.Rule}.Extract(text)
	store := templates.NewStore(names, values)

	rendered, renderErr := renderer.Render(text, store)
	resp["rendered"] = rendered
	resp["fallback"] = renderErr != nil
	if renderErr != nil {
		resp["error"] = renderErr.Error()
		s.logger.Debug().Err(renderErr).Msg("render fell back to template text")
	}
	var parseErr *templates.ParseError
	if errors.As(extractErr, &parseErr) {
		resp["parse_error"] = map[string]interface{}{
			"line":    float64(parseErr.Line),
			"message": parseErr.Message,
		}
	}
	return storeResponse(store, resp)
}

func (s *Server) requestRenderer(req *structpb.Struct) (templates.Renderer, error) {
	renderer := s.renderer
	if v, ok := req.GetFields()["rule"]; ok {
		rule, err := templates.ParseRule(v.GetStringValue())
		if err != nil {
			return renderer, status.Error(codes.InvalidArgument, err.Error())
		}
		renderer.Rule = rule
	}
	if v, ok := req.GetFields()["escape_html"]; ok {
		renderer.EscapeHTML = v.GetBoolValue()
	}
	return renderer, nil
}

func storeResponse(store templates.Store, extra map[string]interface{}) (*structpb.Struct, error) {
	values := make(map[string]interface{}, store.Len())
	for _, name := range store.Names() {
		values[name] = store.Value(name)
	}
	out := map[string]interface{}{
		"variables": stringsToList(store.Names()),
		"values":    values,
	}
	for k, v := range extra {
		out[k] = v
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return s.StringValue, nil
}

func listField(req *structpb.Struct, key string) ([]string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list", key)
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s must contain strings", key)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

func mapField(req *structpb.Struct, key string) (map[string]string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return map[string]string{}, nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", key)
	}
	out := make(map[string]string, len(obj.GetFields()))
	for name, item := range obj.GetFields() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s.%s must be a string", key, name)
		}
		out[name] = s.StringValue
	}
	return out, nil
}

func stringsToList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
