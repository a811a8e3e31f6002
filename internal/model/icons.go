package model

// Centralized icons for the UI components
// Using simple single-width characters for consistent terminal rendering
const (
	IconSender      = "▲" // Transmission origin
	IconReceiver    = "▼" // Transmission destination
	IconCompromised = "✗" // Node flagged by the IDS
	IconOnPath      = "●" // Hop on the current route
	IconVisited     = "◆" // Hop the packet already passed
	IconIdle        = "○" // Any other node
	IconPacket      = "»" // Current packet position
)

// CategoryIcon returns a short tag for a node category.
func CategoryIcon(c NodeCategory) string {
	switch c {
	case CategoryServer:
		return "SRV"
	case CategoryComputer:
		return "PC "
	case CategoryIoT:
		return "IoT"
	case CategoryRouter:
		return "RTR"
	}
	return "???"
}
