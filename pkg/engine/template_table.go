package engine

import "github.com/etcsdemo/obu-etcs/pkg/bitcodec"

// Named message identifiers (spec.md §6).
const (
	NIDMovementAuthority   uint8 = 3
	NIDTrainDataAck        uint8 = 8
	NIDSystemVersion       uint8 = 32
	NIDSessionAck          uint8 = 38
	NIDTerminationAck      uint8 = 39
	NIDTrainAccepted       uint8 = 41
	NIDTrainData           uint8 = 129
	NIDMARequest           uint8 = 132
	NIDPositionReport      uint8 = 136
	NIDGenericAck          uint8 = 146
	NIDEndOfMission        uint8 = 150
	NIDVersionReject       uint8 = 154
	NIDSessionEstablish    uint8 = 155
	NIDSessionTerminate    uint8 = 156
	NIDTrainAcceptance     uint8 = 157
	NIDKeysAuth            uint8 = 159
)

// packet0Template is the position/acceptance sub-packet (spec.md
// GLOSSARY: "Packet 0 ... position report").
var packet0Template = &bitcodec.Template{
	Name:      "packet0",
	NIDPacket: 0,
	Fields: []bitcodec.Field{
		{Name: "NID_PACKET", Bits: 8},
		{Name: "Q_SCALE", Bits: 2},
		{Name: "D_LRBG", Bits: 20},
	},
	Defaults: map[string]int64{"NID_PACKET": 0},
}

// packet15Template is the Movement Authority sub-packet (spec.md §4.8).
var packet15Template = &bitcodec.Template{
	Name:      "packet15",
	NIDPacket: 15,
	Fields: []bitcodec.Field{
		{Name: "NID_PACKET", Bits: 8},
		{Name: "Q_DIR", Bits: 1},
		{Name: "N_ITER", Bits: 5},
		{Name: "L_SECTION_k", Bits: 15, Repeat: true},
		{Name: "Q_SECTIONTIMER_k", Bits: 1, Repeat: true},
		{Name: "T_SECTIONTIMER_k", Bits: 14, Repeat: true},
		{Name: "D_SECTIONTIMERSTOPLOC_k", Bits: 16, Repeat: true},
		{Name: "L_ENDSECTION", Bits: 15},
	},
	Defaults: map[string]int64{"NID_PACKET": 15},
}

// SubPacketTable is the shared recursive-decode table for every
// template below (spec.md §3: "Message Template ... subPackets?").
var SubPacketTable = bitcodec.TemplateTable{
	"packet0":  packet0Template,
	"packet15": packet15Template,
}

// Templates maps every named NID_MESSAGE (spec.md §6) onto its wire
// template. buildFromTemplate and the safety layer both key off this
// table; the bridge's "Template::Missing" error fires when a decoded
// NID is absent here.
var Templates = map[uint8]*bitcodec.Template{
	NIDMovementAuthority: {
		Name:       "msg3_movement_authority",
		Fields:     []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults:   map[string]int64{"NID_MESSAGE": int64(NIDMovementAuthority)},
		SubPackets: []string{"packet15"},
	},
	NIDTrainDataAck: {
		Name:     "msg8_train_data_ack",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDTrainDataAck)},
	},
	NIDSystemVersion: {
		Name: "msg32_system_version",
		Fields: []bitcodec.Field{
			{Name: "NID_MESSAGE", Bits: 8},
			{Name: "M_VERSION", Bits: 8},
		},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDSystemVersion)},
	},
	NIDSessionAck: {
		Name:     "msg38_session_ack",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDSessionAck)},
	},
	NIDTerminationAck: {
		Name:     "msg39_termination_ack",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDTerminationAck)},
	},
	NIDTrainAccepted: {
		Name: "msg41_train_accepted",
		Fields: []bitcodec.Field{
			{Name: "NID_MESSAGE", Bits: 8},
			{Name: "NID_MESSAGE_REF", Bits: 8},
		},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDTrainAccepted)},
	},
	NIDTrainData: {
		Name:     "msg129_train_data",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDTrainData)},
	},
	NIDMARequest: {
		Name:     "msg132_ma_request",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDMARequest)},
	},
	NIDPositionReport: {
		Name:       "msg136_position_report",
		Fields:     []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults:   map[string]int64{"NID_MESSAGE": int64(NIDPositionReport)},
		SubPackets: []string{"packet0"},
	},
	NIDGenericAck: {
		Name: "msg146_generic_ack",
		Fields: []bitcodec.Field{
			{Name: "NID_MESSAGE", Bits: 8},
			{Name: "NID_MESSAGE_REF", Bits: 8},
		},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDGenericAck)},
	},
	NIDEndOfMission: {
		Name:     "msg150_end_of_mission",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDEndOfMission)},
	},
	NIDVersionReject: {
		Name: "msg154_version_reject",
		Fields: []bitcodec.Field{
			{Name: "NID_MESSAGE", Bits: 8},
			{Name: "NID_MESSAGE_REF", Bits: 8},
		},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDVersionReject)},
	},
	NIDSessionEstablish: {
		Name:     "msg155_session_establish",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDSessionEstablish)},
	},
	NIDSessionTerminate: {
		Name:     "msg156_session_terminate",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDSessionTerminate)},
	},
	NIDTrainAcceptance: {
		Name:       "msg157_train_acceptance",
		Fields:     []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults:   map[string]int64{"NID_MESSAGE": int64(NIDTrainAcceptance)},
		SubPackets: []string{"packet0"},
	},
	NIDKeysAuth: {
		Name:     "msg159_keys_auth",
		Fields:   []bitcodec.Field{{Name: "NID_MESSAGE", Bits: 8}},
		Defaults: map[string]int64{"NID_MESSAGE": int64(NIDKeysAuth)},
	},
}
