package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/globe-scale/model"
)

// Client is a typed ScaleService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any, resp any, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decodeStruct(out, resp)
}

// ListModes returns the server's mode table.
func (c *Client) ListModes(ctx context.Context, opts ...grpc.CallOption) ([]model.Mode, error) {
	var resp ModesResponse
	if err := c.invoke(ctx, "ListModes", map[string]any{}, &resp, opts...); err != nil {
		return nil, err
	}
	return resp.Modes, nil
}

// EstablishBaseline creates or replaces a session.
func (c *Client) EstablishBaseline(ctx context.Context, req EstablishRequest, opts ...grpc.CallOption) (SessionInfo, error) {
	var resp SessionResponse
	err := c.invoke(ctx, "EstablishBaseline", req.fields(), &resp, opts...)
	return resp.Session, err
}

// ResetSession drops a session.
func (c *Client) ResetSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "ResetSession", SessionRequest{SessionID: sessionID}.fields(), nil, opts...)
}

// Compare projects targets against a session.
func (c *Client) Compare(ctx context.Context, req CompareRequest, opts ...grpc.CallOption) (CompareResponse, error) {
	var resp CompareResponse
	err := c.invoke(ctx, "Compare", req.fields(), &resp, opts...)
	return resp, err
}

// FitBaseline re-anchors a session so value becomes drawable.
func (c *Client) FitBaseline(ctx context.Context, req FitRequest, opts ...grpc.CallOption) (FitResponse, error) {
	var resp FitResponse
	err := c.invoke(ctx, "FitBaseline", req.fields(), &resp, opts...)
	return resp, err
}

// CirclePoints fetches a point ring.
func (c *Client) CirclePoints(ctx context.Context, req CircleRequest, opts ...grpc.CallOption) ([]model.GeoPoint, error) {
	var resp PointsResponse
	if err := c.invoke(ctx, "CirclePoints", req.fields(), &resp, opts...); err != nil {
		return nil, err
	}
	return resp.Points, nil
}

// Frame fetches a camera placement.
func (c *Client) Frame(ctx context.Context, req CircleRequest, opts ...grpc.CallOption) (model.CameraPlacement, error) {
	var resp model.CameraPlacement
	err := c.invoke(ctx, "Frame", req.fields(), &resp, opts...)
	return resp, err
}
