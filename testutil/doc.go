// Package testutil provides test doubles shared by the package tests.
//
// ListenServer is a scripted listen endpoint on top of httptest: it answers the
// handshake, records every command, acknowledges commands with scripted seqs and serves
// queued frames to the long-poll GETs. Tests script the stream with Push and react to
// commands with OnCommand:
//
//	srv := testutil.NewListenServer()
//	defer srv.Close()
//
//	srv.AckWith(5)
//	srv.OnCommand(func(cmd testutil.RecordedCommand) {
//	    if cmd.AddTarget != nil {
//	        srv.Push(
//	            testutil.TargetChange(6, "ADD", 2),
//	            testutil.DocumentChange(7, 2, docA),
//	            testutil.TargetChange(8, "CURRENT", 2),
//	        )
//	    }
//	})
//
// MockNATSClient records published messages in memory.
package testutil
