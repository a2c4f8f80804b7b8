package recorder

// Origin records who asked for a start or stop.
type Origin string

const (
	OriginAuto     Origin = "auto"     // detector edge
	OriginManual   Origin = "manual"   // command from the shell
	OriginShutdown Origin = "shutdown" // daemon exit
	OriginCrash    Origin = "crash"    // closed at the next startup
)
