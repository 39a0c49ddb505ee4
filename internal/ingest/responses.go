package ingest

import (
	"fmt"

	"github.com/alxayo/go-livestream/internal/rtmp/amf"
	"github.com/alxayo/go-livestream/internal/rtmp/chunk"
	"github.com/alxayo/go-livestream/internal/rtmp/rpc"
)


func buildConnectResult(transactionID float64, msid uint32) (*chunk.Message, error) {
	properties := map[string]interface{}{
		"fmsVer":       "FMS/3,0,1,123",
		"capabilities": float64(31),
	}
	info := map[string]interface{}{
		"level":          "status",
		"code":           "NetConnection.Connect.Success",
		"description":    "Connection succeeded.",
		"objectEncoding": float64(0),
	}
	payload, err := amf.EncodeAll("_result", transactionID, properties, info)
	if err != nil {
		return nil, newIngestError("connect.result.encode", err)
	}
	return &chunk.Message{
		CSID:            3,
		TypeID:          rpc.CommandMessageAMF0TypeIDForTest(),
		MessageStreamID: msid,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}, nil
}

func buildCreateStreamResult(transactionID float64, streamID uint32) (*chunk.Message, error) {
	payload, err := amf.EncodeAll("_result", transactionID, nil, float64(streamID))
	if err != nil {
		return nil, newIngestError("createstream.result.encode", err)
	}
	return &chunk.Message{
		CSID:            3,
		TypeID:          rpc.CommandMessageAMF0TypeIDForTest(),
		MessageStreamID: 0,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}, nil
}

// buildPublishStatus mirrors the onStatus encoding in rtmp/server/publish_handler.go,
// adapted to also express rejection (when code/level signal an error).
func buildPublishStatus(level, code, description string, msid uint32) (*chunk.Message, error) {
	info := map[string]interface{}{
		"level":       level,
		"code":        code,
		"description": description,
	}
	payload, err := amf.EncodeAll("onStatus", float64(0), nil, info)
	if err != nil {
		return nil, newIngestError("publish.status.encode", err)
	}
	return &chunk.Message{
		CSID:            5,
		TypeID:          rpc.CommandMessageAMF0TypeIDForTest(),
		MessageStreamID: msid,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}, nil
}

func buildPublishStart(streamKey string, msid uint32) (*chunk.Message, error) {
	return buildPublishStatus("status", "NetStream.Publish.Start", fmt.Sprintf("Publishing %s.", streamKey), msid)
}

func buildPublishRejected(streamKey, reason string, msid uint32) (*chunk.Message, error) {
	return buildPublishStatus("error", "NetStream.Publish.BadName", fmt.Sprintf("Rejected %s: %s", streamKey, reason), msid)
}
