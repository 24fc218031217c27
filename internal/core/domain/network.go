package domain

// NetworkState classifies the current connectivity path.
type NetworkState string

// Connectivity states.
const (
	// NetworkDisconnected means no usable path exists.
	NetworkDisconnected NetworkState = "disconnected"

	// NetworkConnected means an unrestricted path exists.
	NetworkConnected NetworkState = "connected"

	// NetworkExpensive means a metered path exists (cellular, hotspot).
	NetworkExpensive NetworkState = "expensive"
)

// IsValid returns true if the network state is recognised.
func (s NetworkState) IsValid() bool {
	switch s {
	case NetworkDisconnected, NetworkConnected, NetworkExpensive:
		return true
	default:
		return false
	}
}

// Online reports whether any path exists, metered or not.
func (s NetworkState) Online() bool {
	return s == NetworkConnected || s == NetworkExpensive
}

// String returns the string representation.
func (s NetworkState) String() string {
	return string(s)
}
