package record

const (
	// ExcludedAircraftType marks frames of the aircraft log that are not aircraft
	ExcludedAircraftType = 7030102
	// CenterBroadcastID is the id of the formation-center broadcast channel
	CenterBroadcastID = 20000
	// ControlFrameType frames of the center log carry no position payload
	ControlFrameType = 1
)

// AircraftState is one decoded aircraft telemetry sample
type AircraftState struct {
	ID     int     `json:"id"`
	Type   int     `json:"type"`
	Time   float64 `json:"time"`
	Lng    float64 `json:"lng"`
	Lat    float64 `json:"lat"`
	Height float64 `json:"height"`
	Roll   float64 `json:"roll"`
	Pitch  float64 `json:"pitch"`
	Yaw    float64 `json:"yaw"`
	Speed  float64 `json:"speed"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// CenterPing is one raw row of the experiment-center log
type CenterPing struct {
	ID     int     `json:"id"`
	Type   int     `json:"type"`
	Time   float64 `json:"time"`
	Lng    float64 `json:"lng"`
	Lat    float64 `json:"lat"`
	Height float64 `json:"height"`
}

// ReceivedMessage is one message entry of a receive batch
type ReceivedMessage struct {
	Time      float64 `json:"time"`
	ReceiveID int     `json:"receive_id"`
	SendID    int     `json:"send_id"`
	Type      int     `json:"type"`
}

// FormationEvent is one line of the formation-event log
type FormationEvent struct {
	Time         float64 `json:"time"`
	OutFormation int     `json:"out_formation"`
	TotalSize    int     `json:"total_size"`
}

// InFormation returns how many members are currently in formation
func (e FormationEvent) InFormation() int {
	return e.TotalSize - e.OutFormation
}

// Locked reports whether at least ratio of the formation is in formation
func (e FormationEvent) Locked(ratio float64) bool {
	return float64(e.InFormation()) >= ratio*float64(e.TotalSize)
}
