package constants

import "time"

const (
	Title     = "SVI-3x8 PicoExpander Command Center"
	Version   = "1.4"
	Copyright = "(c) 2025 MAG-4"
)

// Banner is the first line the client prints
func Banner() string {
	return Title + " " + Version + " - " + Copyright
}

const (
	DEFAULT_UDP_PORT      = 4243                          // Device announces itself here
	DEFAULT_TCP_PORT      = 4242                          // Device command port
	HANDSHAKE_MESSAGE     = "SVI-3x8 PicoExpander hello!" // Sent by device once it can be reached
	DEFAULT_LISTEN        = "0.0.0.0"                     // Discovery bind address
	DEFAULT_ANNOUNCE      = "255.255.255.255"             // Emulator handshake destination
	ANNOUNCE_INTERVAL     = time.Second                   // Emulator handshake period
	DEFAULT_DSCP          = 0x00                          // Device does not care about QoS
	FRAME_SIZE            = 10                            // Command frame on the wire
	CHUNK_SIZE            = 16384                         // Disk and tape transfer chunk
	ROM_SLOT_SIZE         = 65536                         // ROMs are always sent padded to this
	DISK_SIZE_SINGLE      = 172032                        // Single sided disk image
	DISK_SIZE_DOUBLE      = 346112                        // Double sided disk image
	MAX_CAS_SIZE          = 524288                        // Largest tape image the device buffers
	DISCOVERY_READ_BUFFER = 1500                          // Handshake fits in one datagram
)

// ROM_SIZES lists the accepted ROM image lengths.
var ROM_SIZES = []int{16384, 32768, 65536}
