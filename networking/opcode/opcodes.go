package opcode

// Host requests.
const (
	LOADROM     = "LR" // Load ROM image, single shot
	LOADDISK    = "LD" // Load disk image, chunked
	LOADTAPE    = "LT" // Load CAS tape image, chunked
	BOOTLAUNCH  = "BL" // Boot back to the launcher
	BOOTBIOS    = "BB" // Boot to the default BIOS
	BOOTPATCHED = "BP" // Boot to the BIOS patched for CAS emulation
)

// Device responses.
const (
	OK       = "OK" // Request accepted
	ERROR    = "ER" // Request refused
	READY    = "RD" // Send next chunk
	FINISHED = "FI" // Image received
)
