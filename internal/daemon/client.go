package daemon

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/affandhia/simple-template-string/internal/templates"
)

// Client calls a running template daemon.
type Client struct {
	conn *grpc.ClientConn
}

// RenderResult is the outcome of a remote render.
type RenderResult struct {
	Rendered   string
	Variables  []string
	Fallback   bool
	Error      string
	ParseError *templates.ParseError
}

// Dial connects to the daemon at addr. The connection is plaintext; the
// daemon binds to loopback by default.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping returns the daemon version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodPing, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetFields()["version"].GetStringValue(), nil
}

// ExtractVariables extracts the variables of text remotely.
func (c *Client) ExtractVariables(ctx context.Context, text string) ([]string, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"text": text})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodExtractVariables, in, out); err != nil {
		return nil, err
	}
	return stringList(out.GetFields()["variables"]), nil
}

// Render renders text with values remotely.
func (c *Client) Render(ctx context.Context, text string, values map[string]string) (RenderResult, error) {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}
	in, err := structpb.NewStruct(map[string]interface{}{"text": text, "values": fields})
	if err != nil {
		return RenderResult{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodRender, in, out); err != nil {
		return RenderResult{}, err
	}

	f := out.GetFields()
	result := RenderResult{
		Rendered:  f["rendered"].GetStringValue(),
		Variables: stringList(f["variables"]),
		Fallback:  f["fallback"].GetBoolValue(),
		Error:     f["error"].GetStringValue(),
	}
	if pe := f["parse_error"].GetStructValue(); pe != nil {
		result.ParseError = &templates.ParseError{
			Line:    int(pe.GetFields()["line"].GetNumberValue()),
			Message: pe.GetFields()["message"].GetStringValue(),
		}
	}
	return result, nil
}

func stringList(v *structpb.Value) []string {
	list := v.GetListValue().GetValues()
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.GetStringValue())
	}
	return out
}
