package comms

import (
	"pico_command_center/networking/opcode"
)

// Kind selects which conversation a command drives
type Kind int

const (
	// FireAndForget sends the command frame and closes.
	FireAndForget Kind = iota
	// SingleShot waits for one OK/ER response. ROM loads send their payload on OK.
	SingleShot
	// Chunked streams the payload one chunk per OK/RD until FI.
	Chunked
)

// Command describes one operation the device understands
type Command struct {
	Name        string
	Opcode      string
	Kind        Kind
	NeedsFile   bool
	Description string
	// ShortCircuit lets the first OK move straight to awaiting FI when the
	// first chunk already covers the image. Tape loads do this, disk loads do not.
	ShortCircuit bool
	// Progress and outcome lines for the operator.
	Starting string
	Success  string
}

// Commands lists every operation in usage order
var Commands = []Command{
	{
		Name: "load_rom", Opcode: opcode.LOADROM, Kind: SingleShot, NeedsFile: true,
		Description: "Send a ROM file to the SVI-3x8",
		Starting:    "Sending ROM upload command...",
		Success:     "ROM image sent",
	},
	{
		Name: "load_disk", Opcode: opcode.LOADDISK, Kind: Chunked, NeedsFile: true,
		Description: "Send a disk image to the SVI-3x8",
		Starting:    "Sending disk upload command...",
		Success:     "Upload finished successfully",
	},
	{
		Name: "load_cas", Opcode: opcode.LOADTAPE, Kind: Chunked, NeedsFile: true, ShortCircuit: true,
		Description: "Send a CAS file to the SVI-3x8",
		Starting:    "Sending tape upload command...",
		Success:     "Upload finished successfully",
	},
	{
		Name: "launcher", Opcode: opcode.BOOTLAUNCH, Kind: SingleShot,
		Description: "Boot the SVI-3x8 back to the launcher",
		Starting:    "Sending request to boot back to launcher...",
		Success:     "Boot was successful",
	},
	{
		Name: "bios", Opcode: opcode.BOOTBIOS, Kind: FireAndForget,
		Description: "Boot the SVI-3x8 back to the BIOS (works only in launcher)",
		Starting:    "Sending request to boot to default BIOS...",
		Success:     "Boot request sent",
	},
	{
		Name: "bios_cas", Opcode: opcode.BOOTPATCHED, Kind: FireAndForget,
		Description: "Boot the SVI-3x8 back to the BIOS with CAS emulation (works only in launcher)",
		Starting:    "Sending request to boot to patched BIOS...",
		Success:     "Boot request sent",
	},
}

// Lookup finds command by its CLI name
func Lookup(name string) (Command, bool) {
	for _, cmd := range Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}
