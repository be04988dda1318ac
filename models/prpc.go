package models

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 Request
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// JSON-RPC 2.0 Response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// JSON-RPC 2.0 Error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ============================================
// get-version response
// ============================================
type VersionResponse struct {
	Version string `json:"version"`
}

// ============================================
// get-stats response
// ============================================

// StatsResponse is the flat "stats" snapshot a pNode reports about itself.
// It carries no version or pubkey.
type StatsResponse struct {
	TotalBytes   int64 `json:"total_bytes"`
	TotalPages   int   `json:"total_pages"`
	LastUpdated  int64 `json:"last_updated"`
	FileSize     int64 `json:"file_size"`
	CurrentIndex int   `json:"current_index"`

	CPUPercent      float64 `json:"cpu_percent"`
	RAMUsed         int64   `json:"ram_used"`
	RAMTotal        int64   `json:"ram_total"`
	Uptime          int64   `json:"uptime"`
	PacketsReceived int64   `json:"packets_received"`
	PacketsSent     int64   `json:"packets_sent"`
	ActiveStreams   int     `json:"active_streams"`
}

// StatsSample pairs a stats snapshot with the endpoint it was read from.
type StatsSample struct {
	Address string        `json:"address"`
	Stats   StatsResponse `json:"stats"`
}

// ============================================
// get-pods-with-stats response
// ============================================
type PodsWithStatsResponse struct {
	Pods       []PodWithStats `json:"pods"`
	TotalCount int            `json:"total_count"`
}

// PodWithStats is one gossip entry. Every field except Address may be
// missing; zero values stand for "absent".
type PodWithStats struct {
	Address             string  `json:"address"`
	Pubkey              string  `json:"pubkey,omitempty"`
	RpcPort             int     `json:"rpc_port,omitempty"`
	IsPublic            *bool   `json:"is_public,omitempty"`
	Version             string  `json:"version,omitempty"`
	LastSeenTimestamp   int64   `json:"last_seen_timestamp,omitempty"`
	StorageCommitted    int64   `json:"storage_committed,omitempty"`
	StorageUsed         int64   `json:"storage_used,omitempty"`
	StorageUsagePercent float64 `json:"storage_usage_percent,omitempty"`
	Uptime              int64   `json:"uptime,omitempty"`
}
