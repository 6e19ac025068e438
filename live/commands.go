package live

// AbletonOSC command surface. Exact addresses are a deployment detail of
// the remote plugin; the controller only relies on the clip-create,
// add-notes, transport and ping semantics.
const (
	cmdDeleteClip   = "/live/clip_slot/delete_clip"
	cmdCreateClip   = "/live/clip_slot/create_clip"
	cmdAddNotes     = "/live/clip/add/notes"
	cmdSetLoopStart = "/live/clip/set/loop_start"
	cmdSetLoopEnd   = "/live/clip/set/loop_end"
	cmdSetLooping   = "/live/clip/set/looping"
	cmdFireClip     = "/live/clip/fire"
	cmdStopClip     = "/live/song/stop_playing_clip"
	cmdStartPlaying = "/live/song/start_playing"
	cmdStopPlaying  = "/live/song/stop_playing"
	cmdPing         = "/live/test"
)
