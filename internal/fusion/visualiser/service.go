package visualiser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// ServiceName is the gRPC service exposing cluster reports.
const ServiceName = "fusion.v1.ClusterStream"

const streamClustersMethod = "/" + ServiceName + "/StreamClusters"

// ClusterStreamServer is the server side of the cluster stream. The
// request is a Struct with an optional "camera_id" filter; each response
// is a Struct in the ReportMessage layout.
type ClusterStreamServer interface {
	StreamClusters(req *structpb.Struct, stream grpc.ServerStream) error
}

var clusterStreamDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClusterStreamServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamClusters",
		Handler:       streamClustersHandler,
		ServerStreams: true,
	}},
	Metadata: "fusion/v1/cluster_stream",
}

func streamClustersHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ClusterStreamServer).StreamClusters(req, stream)
}

// RegisterClusterStreamServer registers srv on s.
func RegisterClusterStreamServer(s grpc.ServiceRegistrar, srv ClusterStreamServer) {
	s.RegisterService(&clusterStreamDesc, srv)
}

// ReportMessage is the wire layout of one streamed cluster report.
type ReportMessage struct {
	FrameID  string                  `json:"frame_id"`
	CameraID string                  `json:"camera_id"`
	Stamp    time.Time               `json:"stamp"`
	Clusters []l5rank.ClusterSummary `json:"clusters"`
}

// EncodeReport converts a cluster report to its wire form.
func EncodeReport(report pipeline.ClusterReport) (*structpb.Struct, error) {
	msg := ReportMessage{
		FrameID:  report.FrameID,
		CameraID: report.CameraID,
		Stamp:    report.Stamp.UTC(),
		Clusters: report.Summaries,
	}
	if msg.Clusters == nil {
		msg.Clusters = []l5rank.ClusterSummary{}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// DecodeReport is the inverse of EncodeReport.
func DecodeReport(s *structpb.Struct) (*ReportMessage, error) {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	msg := new(ReportMessage)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("malformed cluster report: %w", err)
	}
	return msg, nil
}

// ClusterStreamClient receives reports from a StreamClusters call.
type ClusterStreamClient struct {
	stream grpc.ClientStream
}

// StreamClusters opens a cluster stream on cc. An empty cameraID receives
// every camera.
func StreamClusters(ctx context.Context, cc grpc.ClientConnInterface, cameraID string) (*ClusterStreamClient, error) {
	stream, err := cc.NewStream(ctx, &clusterStreamDesc.Streams[0], streamClustersMethod)
	if err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]interface{}{"camera_id": cameraID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ClusterStreamClient{stream: stream}, nil
}

// Recv blocks for the next report.
func (c *ClusterStreamClient) Recv() (*ReportMessage, error) {
	m := new(structpb.Struct)
	if err := c.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return DecodeReport(m)
}
