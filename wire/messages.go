package wire

// Type tags a datagram variant. Values are fixed by the protocol and
// shared with the Python tooling still used by some teams.
type Type string

const (
	TypeRegister          Type = "REGISTER"
	TypeRegisterAck       Type = "REGISTER_ACK"
	TypeHeartbeat         Type = "HEARTBEAT"
	TypeHitReport         Type = "HIT_REPORT"
	TypeReadyStatus       Type = "READY_STATUS"
	TypeReadyCheck        Type = "READY_CHECK"
	TypeMatchStart        Type = "GAME_START"
	TypeMatchEnd          Type = "GAME_END"
	TypeForceReady        Type = "FORCE_READY"
	TypeScoreUpdate       Type = "POINTS_UPDATE"
	TypeRobotDisabled     Type = "ROBOT_DISABLED"
	TypeRobotEnabled      Type = "ROBOT_ENABLED"
	TypeDiscoveryBeacon   Type = "DISCOVERY"
	TypeDiscoveryResponse Type = "DISCOVERY_RESPONSE"
	TypeControl           Type = "CONTROL"
	TypeConfigRequest     Type = "CONFIG_REQUEST"
	TypeConfigResponse    Type = "CONFIG_RESPONSE"
	TypeStatus            Type = "STATUS"
)

// Message is one decoded datagram variant.
type Message interface {
	WireType() Type
}

// Register announces a team endpoint to the coordinator. Sent by both
// the operator proxy and the robot agent; Role tells them apart.
type Register struct {
	Type       Type    `json:"type"`
	TeamID     int     `json:"team_id"`
	TeamName   string  `json:"team_name"`
	RobotName  string  `json:"robot_name"`
	Role       string  `json:"role,omitempty"` // "operator" or "robot"
	ListenPort int     `json:"listen_port"`
	Timestamp  float64 `json:"timestamp"`
}

func (*Register) WireType() Type { return TypeRegister }

// RegisterAck confirms a registration.
type RegisterAck struct {
	Type   Type   `json:"type"`
	Status string `json:"status"`
}

func (*RegisterAck) WireType() Type { return TypeRegisterAck }

// Heartbeat keeps contact timestamps fresh. The robot's heartbeat
// carries its current score view for diagnostics.
type Heartbeat struct {
	Type       Type    `json:"type"`
	TeamID     int     `json:"team_id,omitempty"`
	GameActive bool    `json:"game_active,omitempty"`
	Points     int     `json:"points,omitempty"`
	Timestamp  float64 `json:"timestamp"`
}

func (*Heartbeat) WireType() Type { return TypeHeartbeat }

// HitData is the payload of a HitReport.
type HitData struct {
	AttackingTeam int     `json:"attacking_team"`
	DefendingTeam int     `json:"defending_team"`
	Timestamp     float64 `json:"timestamp"` // robot clock, seconds
	GameTime      float64 `json:"game_time,omitempty"`
}

// HitReport is sent by the defender's robot agent when its IR receiver
// decodes another team's pulse train. Retransmitted until acknowledged
// by a RobotDisabled for the defender.
type HitReport struct {
	Type      Type    `json:"type"`
	TeamID    int     `json:"team_id"`
	Data      HitData `json:"data"`
	Timestamp float64 `json:"timestamp"`
}

func (*HitReport) WireType() Type { return TypeHitReport }

// ReadyStatus is the operator's declared readiness.
type ReadyStatus struct {
	Type      Type    `json:"type"`
	TeamID    int     `json:"team_id"`
	Ready     bool    `json:"ready"`
	Timestamp float64 `json:"timestamp"`
}

func (*ReadyStatus) WireType() Type { return TypeReadyStatus }

// ReadyCheck asks all operators to declare readiness.
type ReadyCheck struct {
	Type Type `json:"type"`
}

func (*ReadyCheck) WireType() Type { return TypeReadyCheck }

// MatchStart starts a match for the listed participants.
type MatchStart struct {
	Type         Type   `json:"type"`
	MatchID      string `json:"match_id,omitempty"`
	Duration     int    `json:"duration"` // seconds
	Participants []int  `json:"participants,omitempty"`
}

func (*MatchStart) WireType() Type { return TypeMatchStart }

// MatchEnd ends the running match.
type MatchEnd struct {
	Type Type `json:"type"`
}

func (*MatchEnd) WireType() Type { return TypeMatchEnd }

// ForceReady overrides an operator's local readiness immediately before
// MatchStart.
type ForceReady struct {
	Type   Type   `json:"type"`
	TeamID int    `json:"team_id"`
	Reason string `json:"reason"`
}

func (*ForceReady) WireType() Type { return TypeForceReady }

// ScoreUpdate carries absolute totals, never deltas, so redelivery and
// reordering converge.
type ScoreUpdate struct {
	Type   Type `json:"type"`
	Points int  `json:"points"`
	Kills  int  `json:"kills"`
	Deaths int  `json:"deaths"`
}

func (*ScoreUpdate) WireType() Type { return TypeScoreUpdate }

// RobotDisabled tells the defender's operator about an accepted hit.
// DisabledUntil is absolute (unix seconds) so redelivery never extends
// the window.
type RobotDisabled struct {
	Type          Type    `json:"type"`
	DisabledBy    string  `json:"disabled_by"`
	DisabledByID  int     `json:"disabled_by_id"`
	Duration      float64 `json:"duration"` // seconds
	DisabledUntil float64 `json:"disabled_until"`
}

func (*RobotDisabled) WireType() Type { return TypeRobotDisabled }

// RobotEnabled clears the disabled state when the window passes.
type RobotEnabled struct {
	Type      Type    `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

func (*RobotEnabled) WireType() Type { return TypeRobotEnabled }

// DiscoveryBeacon is broadcast by the coordinator so parties can find
// it after either side restarts.
type DiscoveryBeacon struct {
	Type      Type    `json:"type"`
	CoordIP   string  `json:"coord_ip"`
	CoordPort int     `json:"coord_port"`
	Timestamp float64 `json:"timestamp"`
}

func (*DiscoveryBeacon) WireType() Type { return TypeDiscoveryBeacon }

// DiscoveryResponse answers a beacon with the same payload as Register.
type DiscoveryResponse struct {
	Type       Type    `json:"type"`
	TeamID     int     `json:"team_id"`
	TeamName   string  `json:"team_name"`
	RobotName  string  `json:"robot_name"`
	Role       string  `json:"role,omitempty"`
	ListenPort int     `json:"listen_port"`
	Timestamp  float64 `json:"timestamp"`
}

func (*DiscoveryResponse) WireType() Type { return TypeDiscoveryResponse }

// Control is the operator's per-tick command to the robot.
type Control struct {
	Type   Type    `json:"type"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	VR     float64 `json:"vr"`
	Speed  float64 `json:"speed"`
	EStop  bool    `json:"estop"`
	Fire   bool    `json:"fire"`
	Servo1 float64 `json:"servo1"`
	Servo2 float64 `json:"servo2"`
	GPIO   [4]bool `json:"gpio"`
	Lights bool    `json:"lights"`
}

func (*Control) WireType() Type { return TypeControl }

// ConfigRequest asks the robot for its canonical team configuration.
type ConfigRequest struct {
	Type Type `json:"type"`
}

func (*ConfigRequest) WireType() Type { return TypeConfigRequest }

// TeamInfo is the identity block of a ConfigResponse.
type TeamInfo struct {
	TeamID    int    `json:"team_id"`
	TeamName  string `json:"team_name"`
	RobotName string `json:"robot_name"`
}

// NetworkInfo is the network block of a ConfigResponse.
type NetworkInfo struct {
	CoordinatorIP   string `json:"coordinator_ip"`
	CoordinatorPort int    `json:"coordinator_port"`
	RobotListenPort int    `json:"robot_listen_port"`
}

// ConfigPayload mirrors the robot's on-disk configuration document.
type ConfigPayload struct {
	Team    TeamInfo    `json:"team"`
	Network NetworkInfo `json:"network"`
}

// ConfigResponse is the robot's reply to ConfigRequest. The robot is
// the authoritative source of team identity.
type ConfigResponse struct {
	Type   Type          `json:"type"`
	Config ConfigPayload `json:"config"`
}

func (*ConfigResponse) WireType() Type { return TypeConfigResponse }

// IRStatus is the robot's local view of its hit state.
type IRStatus struct {
	IsHit         bool    `json:"is_hit"`
	HitByTeam     int     `json:"hit_by_team"`
	TimeRemaining float64 `json:"time_remaining"` // seconds
}

// GameStatus is the robot's local view of match state.
type GameStatus struct {
	GameActive bool `json:"game_active"`
	IsReady    bool `json:"is_ready"`
	Points     int  `json:"points"`
	Kills      int  `json:"kills"`
	Deaths     int  `json:"deaths"`
}

// Status is the robot's reply to each Control message.
type Status struct {
	Type        Type       `json:"type"`
	IRStatus    IRStatus   `json:"ir_status"`
	GameStatus  GameStatus `json:"game_status"`
	FireSuccess bool       `json:"fire_success"`
}

func (*Status) WireType() Type { return TypeStatus }
