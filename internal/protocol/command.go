package protocol

// CommandType is the numeric wire tag for the closed set of player intents.
type CommandType int

const (
	CmdMove               CommandType = 1
	CmdFastMove           CommandType = 2
	CmdReverse            CommandType = 3
	CmdAttack             CommandType = 4
	CmdAttackMove         CommandType = 5
	CmdStop               CommandType = 6
	CmdGarrison           CommandType = 7
	CmdUngarrison         CommandType = 8
	CmdSpawnUnit          CommandType = 9
	CmdMount              CommandType = 10
	CmdUnload             CommandType = 11
	CmdDigIn              CommandType = 12
	CmdSetReturnFireOnly  CommandType = 13
	CmdQueueReinforcement CommandType = 14
)

var commandNames = map[CommandType]string{
	CmdMove:               "MOVE",
	CmdFastMove:           "FAST_MOVE",
	CmdReverse:            "REVERSE",
	CmdAttack:             "ATTACK",
	CmdAttackMove:         "ATTACK_MOVE",
	CmdStop:               "STOP",
	CmdGarrison:           "GARRISON",
	CmdUngarrison:         "UNGARRISON",
	CmdSpawnUnit:          "SPAWN_UNIT",
	CmdMount:              "MOUNT",
	CmdUnload:             "UNLOAD",
	CmdDigIn:              "DIG_IN",
	CmdSetReturnFireOnly:  "SET_RETURN_FIRE_ONLY",
	CmdQueueReinforcement: "QUEUE_REINFORCEMENT",
}

func (t CommandType) String() string {
	if s, ok := commandNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

func (t CommandType) Known() bool {
	_, ok := commandNames[t]
	return ok
}

// Vec2 is a world-plane position. Simulation math on these values is
// restricted to +,-,*,/ and Sqrt so results are bit-identical across peers.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Command is one player intent, immutable once created. Tick is the
// simulation tick at which it becomes effective, not the tick it was sent.
// Optional fields are pointers so an absent field survives a round trip as
// absent rather than as a zero placeholder.
type Command struct {
	Type     CommandType `json:"type"`
	Tick     uint64      `json:"tick"`
	PlayerID string      `json:"player_id"`
	UnitIDs  []string    `json:"unit_ids,omitempty"`

	// Target position: Move/FastMove/Reverse/AttackMove destination,
	// SpawnUnit placement, QueueReinforcement rally point.
	Target *Vec2 `json:"target,omitempty"`

	// TargetID references the entity an Attack is directed at.
	TargetID string `json:"target_id,omitempty"`

	// BuildingID references the structure for Garrison.
	BuildingID string `json:"building_id,omitempty"`

	// TransportID references the carrier for Mount.
	TransportID string `json:"transport_id,omitempty"`

	// UnitType names the archetype for SpawnUnit/QueueReinforcement.
	UnitType string `json:"unit_type,omitempty"`

	// Enabled toggles SetReturnFireOnly and DigIn.
	Enabled *bool `json:"enabled,omitempty"`

	// Queue appends the resulting order after current orders instead of
	// replacing them.
	Queue bool `json:"queue,omitempty"`
}

// shape describes the structural requirements of one command variant.
type shape struct {
	needsUnits     bool
	needsTarget    bool
	needsTargetID  bool
	needsBuilding  bool
	needsTransport bool
	needsUnitType  bool
	needsEnabled   bool
}

var shapes = map[CommandType]shape{
	CmdMove:               {needsUnits: true, needsTarget: true},
	CmdFastMove:           {needsUnits: true, needsTarget: true},
	CmdReverse:            {needsUnits: true, needsTarget: true},
	CmdAttack:             {needsUnits: true, needsTargetID: true},
	CmdAttackMove:         {needsUnits: true, needsTarget: true},
	CmdStop:               {needsUnits: true},
	CmdGarrison:           {needsUnits: true, needsBuilding: true},
	CmdUngarrison:         {needsUnits: true},
	CmdSpawnUnit:          {needsTarget: true, needsUnitType: true},
	CmdMount:              {needsUnits: true, needsTransport: true},
	CmdUnload:             {needsUnits: true},
	CmdDigIn:              {needsUnits: true, needsEnabled: true},
	CmdSetReturnFireOnly:  {needsUnits: true, needsEnabled: true},
	CmdQueueReinforcement: {needsTarget: true, needsUnitType: true},
}

// ValidShape reports whether the command carries every field its variant
// requires and a well-formed envelope. It never executes the command.
func ValidShape(c Command) bool {
	return shapeError(c) == nil
}

func shapeError(c Command) *DecodeError {
	sh, ok := shapes[c.Type]
	if !ok {
		return decodeErrf(ErrUnknownType, "unknown command type %d", int(c.Type))
	}
	if c.PlayerID == "" {
		return decodeErrf(ErrBadShape, "%s: missing player_id", c.Type)
	}
	if sh.needsUnits && len(c.UnitIDs) == 0 {
		return decodeErrf(ErrBadShape, "%s: missing unit_ids", c.Type)
	}
	if sh.needsTarget && c.Target == nil {
		return decodeErrf(ErrBadShape, "%s: missing target", c.Type)
	}
	if sh.needsTargetID && c.TargetID == "" {
		return decodeErrf(ErrBadShape, "%s: missing target_id", c.Type)
	}
	if sh.needsBuilding && c.BuildingID == "" {
		return decodeErrf(ErrBadShape, "%s: missing building_id", c.Type)
	}
	if sh.needsTransport && c.TransportID == "" {
		return decodeErrf(ErrBadShape, "%s: missing transport_id", c.Type)
	}
	if sh.needsUnitType && c.UnitType == "" {
		return decodeErrf(ErrBadShape, "%s: missing unit_type", c.Type)
	}
	if sh.needsEnabled && c.Enabled == nil {
		return decodeErrf(ErrBadShape, "%s: missing enabled", c.Type)
	}
	return nil
}
