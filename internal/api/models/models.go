package models

import (
	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/devices"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/memalloc"
	"github.com/smazurov/spearcam/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Allocator models

type MemallocData struct {
	Profile    string               `json:"profile" example:"android" doc:"Active allocation profile"`
	Base       string               `json:"base" example:"0x36600000" doc:"Bus address of the region"`
	StrictFree bool                 `json:"strict_free" doc:"Whether sessions may only free chunks they own"`
	Stats      memalloc.Stats       `json:"stats" doc:"Table totals"`
	Sessions   []memalloc.SessionID `json:"sessions" doc:"Open session ids"`
	Chunks     []memalloc.Chunk     `json:"chunks" doc:"Allocation table"`
}

type MemallocResponse struct {
	Body MemallocData
}

type SessionData struct {
	ID memalloc.SessionID `json:"id" example:"0" doc:"Session id"`
}

type SessionResponse struct {
	Body SessionData
}

type SessionPath struct {
	ID int `path:"id" minimum:"0" doc:"Session id"`
}

type SessionClosedResponse struct {
	Body struct {
		ID    memalloc.SessionID `json:"id" example:"0" doc:"Closed session id"`
		Freed int                `json:"freed" example:"2" doc:"Chunks returned to the pool"`
	}
}

type BufferRequest struct {
	ID   int `path:"id" minimum:"0" doc:"Session id"`
	Body struct {
		Size uint32 `json:"size" example:"8192" doc:"Requested size in bytes"`
	}
}

type BufferData struct {
	BusAddress uint32 `json:"bus_address" example:"912261120" doc:"Bus address of the chunk, 0 when nothing fits"`
	Hex        string `json:"hex" example:"0x36600000" doc:"Bus address in hex"`
	OK         bool   `json:"ok" doc:"Whether a chunk was allocated"`
}

type BufferResponse struct {
	Body BufferData
}

type BufferPath struct {
	ID      int    `path:"id" minimum:"0" doc:"Session id"`
	Address string `path:"address" example:"0x36600000" doc:"Bus address, decimal or 0x-prefixed hex"`
}

// Camera models

type CameraStatusResponse struct {
	Body camera.Status
}

type PictureData struct {
	Width     int    `json:"width" example:"320" doc:"Picture width"`
	Height    int    `json:"height" example:"240" doc:"Picture height"`
	Bytes     int    `json:"bytes" example:"14230" doc:"Size of the JPEG"`
	ImageData string `json:"image_data" doc:"Base64 encoded JPEG"`
}

type PictureResponse struct {
	Body PictureData
}

type ParametersData struct {
	Parameters camera.Parameters `json:"parameters" doc:"Structured camera parameters"`
	Flattened  string            `json:"flattened" doc:"Parameters as key=value;key=value text"`
}

type ParametersResponse struct {
	Body ParametersData
}

type ParametersRequest struct {
	Persist bool `query:"persist" doc:"Also write the parameters file so they survive a restart"`
	Body    camera.Parameters
}

type FlattenedParametersRequest struct {
	Persist bool `query:"persist" doc:"Also write the parameters file so they survive a restart"`
	Body    struct {
		Flattened string `json:"flattened" minLength:"1" example:"preview-size=640x480;jpeg-quality=75" doc:"key=value;key=value text applied on top of the current parameters"`
	}
}

type SnapshotRequest struct {
	Quality int `query:"quality" minimum:"1" maximum:"100" default:"80" doc:"JPEG quality"`
}

type SnapshotResponse struct {
	Body struct {
		Width     int    `json:"width" example:"320" doc:"Frame width"`
		Height    int    `json:"height" example:"240" doc:"Frame height"`
		Frames    uint64 `json:"frames" doc:"Frames shown on the surface so far"`
		ImageData string `json:"image_data" doc:"Base64 encoded JPEG of the last frame"`
	}
}

type CameraDevice struct {
	devices.DeviceInfo
	Formats []devices.FormatInfo `json:"formats,omitempty" doc:"Supported formats and frame sizes"`
}

type DevicesResponse struct {
	Body struct {
		Devices []CameraDevice `json:"devices" doc:"Capture devices"`
	}
}

// Log models

type LogsRequest struct {
	Limit int `query:"limit" minimum:"0" doc:"Return only the last N entries, 0 for all"`
}

type LogsResponse struct {
	Body struct {
		Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	}
}
