package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxDatagram is the largest datagram either side will send or accept.
const MaxDatagram = 4096

// ErrUnknownType marks a datagram whose type field is unrecognized.
// Receivers drop these without error.
var ErrUnknownType = errors.New("unknown message type")

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses one datagram into its typed variant.
func Decode(data []byte) (Message, error) {
	if len(data) > MaxDatagram {
		return nil, fmt.Errorf("datagram %d bytes exceeds %d", len(data), MaxDatagram)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeRegister:
		msg = &Register{}
	case TypeRegisterAck:
		msg = &RegisterAck{}
	case TypeHeartbeat:
		msg = &Heartbeat{}
	case TypeHitReport:
		msg = &HitReport{}
	case TypeReadyStatus:
		msg = &ReadyStatus{}
	case TypeReadyCheck:
		msg = &ReadyCheck{}
	case TypeMatchStart:
		msg = &MatchStart{}
	case TypeMatchEnd:
		msg = &MatchEnd{}
	case TypeForceReady:
		msg = &ForceReady{}
	case TypeScoreUpdate:
		msg = &ScoreUpdate{}
	case TypeRobotDisabled:
		msg = &RobotDisabled{}
	case TypeRobotEnabled:
		msg = &RobotEnabled{}
	case TypeDiscoveryBeacon:
		msg = &DiscoveryBeacon{}
	case TypeDiscoveryResponse:
		msg = &DiscoveryResponse{}
	case TypeControl:
		msg = &Control{}
	case TypeConfigRequest:
		msg = &ConfigRequest{}
	case TypeConfigResponse:
		msg = &ConfigResponse{}
	case TypeStatus:
		msg = &Status{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.Type, err)
	}
	return msg, nil
}

// Encode serializes a message, stamping its type tag.
func Encode(msg Message) ([]byte, error) {
	stamp(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.WireType(), err)
	}
	if len(data) > MaxDatagram {
		return nil, fmt.Errorf("%s datagram %d bytes exceeds %d", msg.WireType(), len(data), MaxDatagram)
	}
	return data, nil
}

// stamp fills the Type field so callers can construct literals without
// repeating the tag.
func stamp(msg Message) {
	switch m := msg.(type) {
	case *Register:
		m.Type = TypeRegister
	case *RegisterAck:
		m.Type = TypeRegisterAck
	case *Heartbeat:
		m.Type = TypeHeartbeat
	case *HitReport:
		m.Type = TypeHitReport
	case *ReadyStatus:
		m.Type = TypeReadyStatus
	case *ReadyCheck:
		m.Type = TypeReadyCheck
	case *MatchStart:
		m.Type = TypeMatchStart
	case *MatchEnd:
		m.Type = TypeMatchEnd
	case *ForceReady:
		m.Type = TypeForceReady
	case *ScoreUpdate:
		m.Type = TypeScoreUpdate
	case *RobotDisabled:
		m.Type = TypeRobotDisabled
	case *RobotEnabled:
		m.Type = TypeRobotEnabled
	case *DiscoveryBeacon:
		m.Type = TypeDiscoveryBeacon
	case *DiscoveryResponse:
		m.Type = TypeDiscoveryResponse
	case *Control:
		m.Type = TypeControl
	case *ConfigRequest:
		m.Type = TypeConfigRequest
	case *ConfigResponse:
		m.Type = TypeConfigResponse
	case *Status:
		m.Type = TypeStatus
	}
}
