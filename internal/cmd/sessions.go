package cmd

// SessionsCmd manages sessions
type SessionsCmd struct {
	Add      SessionsAddCmd      `cmd:"add" help:"Create a session and attach to it"`
	Archive  SessionsArchiveCmd  `cmd:"archive" help:"Archive a session (keeps records, frees worktree)"`
	Continue SessionsContinueCmd `cmd:"continue" help:"Resume a stopped or errored session"`
	Del      SessionsDelCmd      `cmd:"del" help:"Delete a session and everything it owns"`
	Favorite SessionsFavoriteCmd `cmd:"favorite" help:"Toggle the favorite flag"`
	List     SessionsListCmd     `cmd:"list" help:"List sessions" default:"1"`
	Rename   SessionsRenameCmd   `cmd:"rename" help:"Update session display name"`
	Replay   SessionsReplayCmd   `cmd:"replay" help:"Render the full stored output of a session"`
	Send     SessionsSendCmd     `cmd:"send" help:"Send a prompt to a session, resuming it if needed"`
	Stop     SessionsStopCmd     `cmd:"stop" help:"Stop a session's agent process"`
	Tail     SessionsTailCmd     `cmd:"tail" help:"Replay stored output then follow live"`
}
