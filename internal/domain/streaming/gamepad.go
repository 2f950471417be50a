package streaming

// MaxGamepads is the number of controller slots a host accepts
const MaxGamepads = 4

// GamepadMask returns the controller-presence bitfield sent at launch.
// Devices beyond MaxGamepads are ignored.
func GamepadMask(count int) int {
	mask := 0
	for i := 0; i < count && i < MaxGamepads; i++ {
		mask = mask<<1 | 1
	}
	return mask
}
