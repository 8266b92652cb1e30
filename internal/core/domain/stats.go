package domain

import "time"

// DispatcherStats counts what the dispatcher saw and what it did with it.
type DispatcherStats struct {
	PacketsIn        uint64 `json:"packets_in"`
	EthernetIn       uint64 `json:"ethernet_in"`
	WlanIn           uint64 `json:"wlan_in"`
	ServiceIn        uint64 `json:"service_in"`
	DroppedNoMlme    uint64 `json:"dropped_no_mlme"`
	DroppedBadFrame  uint64 `json:"dropped_bad_frame"`
	DroppedShortHdr  uint64 `json:"dropped_short_header"`
	UnknownOrdinals  uint64 `json:"unknown_ordinals"`
	TimeoutsIn       uint64 `json:"timeouts_in"`
	UnsupportedPorts uint64 `json:"unsupported_ports"`
}

// MlmeStats counts frames by family as classified on the MLME receive path.
type MlmeStats struct {
	MgmtFrames    uint64    `json:"mgmt_frames"`
	DataFrames    uint64    `json:"data_frames"`
	CtrlFrames    uint64    `json:"ctrl_frames"`
	ServiceMsgs   uint64    `json:"service_msgs"`
	BeaconFrames  uint64    `json:"beacon_frames"`
	ProbeResps    uint64    `json:"probe_resps"`
	ScansStarted  uint64    `json:"scans_started"`
	ScansFinished uint64    `json:"scans_finished"`
	LastReset     time.Time `json:"last_reset"`
}

// StatsSnapshot is the aggregate served to the introspection surface.
type StatsSnapshot struct {
	Dispatcher DispatcherStats `json:"dispatcher"`
	Mlme       MlmeStats       `json:"mlme"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
