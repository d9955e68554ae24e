package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_REL = 0x02

	// Relative axis codes carrying wheel/dial motion
	REL_DIAL   = 0x07
	REL_WHEEL  = 0x08
	REL_HWHEEL = 0x06
)

// Daemon defaults
const (
	defaultUpdateHz   = 30 // auto-repair sweep cadence (Hz)
	defaultWSAddr     = "127.0.0.1:8137"
	defaultWSPath     = "/ws"
	defaultIPCSocket  = "/tmp/ringmenud.sock"
	defaultConfigPath = ""

	// One evdev wheel detent maps to one line-unit delta, matching how
	// browsers report legacy wheel hardware.
	evdevDetentLines = 1.0
)

// Menu defaults (per-menu overrides live in the config file)
const (
	defaultItemCount        = 8
	defaultSelectDurationMS = 600
	defaultScrollDurationMS = 250
	defaultMaxHoldMS        = 5000
)
