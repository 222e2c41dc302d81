package rsyncopts

// FileSelection reports whether the transfer recurses into
// subdirectories (the --recursive/-r family) as opposed to only
// transferring the named top-level entries.
func (o *Options) FileSelection() bool { return o.recurse != 0 }

// PreserveUser reports whether owner uid and username metadata are sent
// with the file list: usernames go inline with each entry in recursive
// transfers and as one batch after the initial segment otherwise. The
// teacher's single --owner/-o flag already gates both.
func (o *Options) PreserveUser() bool { return o.preserve_uid != 0 }

// ReceiveFilterRules returns the --filter/--exclude/--include rules
// accumulated from the command line, in the order given.
func (o *Options) ReceiveFilterRules() []string { return o.filter_rules }

// SendStatistics reports whether the transfer should emit a stats
// summary (--stats) at the end of the run.
func (o *Options) SendStatistics() bool { return o.do_stats != 0 }

// ExitEarlyIfEmptyList reports whether the driver should exit as soon
// as the file list to send turns out to be empty, without waiting for
// the peer's teardown handshake.
func (o *Options) ExitEarlyIfEmptyList() bool { return o.exit_early_if_empty_list != 0 }

// SetExitEarlyIfEmptyList configures ExitEarlyIfEmptyList.
func (o *Options) SetExitEarlyIfEmptyList(v bool) { o.exit_early_if_empty_list = boolToInt(v) }

// ExitAfterEOF reports the exit-after-EOF setting stored by
// SetExitAfterEOF. Transfer.Do does not consult it: in the client role
// it always drains the connection until EOF.
func (o *Options) ExitAfterEOF() bool { return o.exit_after_eof != 0 }

// SetExitAfterEOF configures ExitAfterEOF.
func (o *Options) SetExitAfterEOF(v bool) { o.exit_after_eof = boolToInt(v) }

// SafeFileList reports whether a file-list segment whose directory
// could not be read is terminated with the I/O-error end-of-list marker
// instead of the ordinary 0 byte. Off by default.
func (o *Options) SafeFileList() bool { return o.safe_file_list != 0 }

// SetSafeFileList configures SafeFileList.
func (o *Options) SetSafeFileList(v bool) { o.safe_file_list = boolToInt(v) }

// Interruptible reports whether the driver honors context cancellation
// rather than running the transfer to completion unconditionally. The
// driver checks for cancellation once at the top of each main-loop
// iteration; a read or write already blocked on the connection is not
// interrupted.
func (o *Options) Interruptible() bool { return o.interruptible != 0 }

// SetInterruptible configures Interruptible.
func (o *Options) SetInterruptible(v bool) { o.interruptible = boolToInt(v) }

// Charset returns the --iconv filename charset conversion spec, or the
// empty string if none was requested.
func (o *Options) Charset() string { return o.iconv_opt }

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
