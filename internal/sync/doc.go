// Package sync tracks which SmartM collections have changes waiting to be
// pushed and runs sync passes against the remote.
//
// # Overview
//
// The Manager owns one persisted record, the sync state:
//
//	{
//	  "pendingCount": 3,                // sum of entities[*].pendingCount
//	  "lastSyncAttempt": "...",
//	  "lastSuccessfulSync": "...",
//	  "autoSync": true,
//	  "syncFrequency": 30,              // minutes
//	  "entities": {
//	    "equipment": {"pendingCount": 2, "lastSync": "..."},
//	    "personnel": {"pendingCount": 1}
//	  }
//	}
//
// and, per entity type, the list of record ids changed since the last
// successful pass (key pending_sync_<type>).
//
// # State machine
//
// The manager is either idle or syncing. A pass started while another is
// in flight returns false at once and changes nothing. A pass commits as a
// whole: either every requested type is cleared or none is.
//
//	Idle ──PerformSync──▶ Syncing ──success──▶ Idle (requested types cleared)
//	                          └──────failure──▶ Idle (pending counts kept)
//
// # Remote
//
// There is no real server. In online mode the SimulatedRemote waits for a
// fixed latency and fails with a configured probability; local mode skips
// the remote entirely and always succeeds.
//
// # Usage
//
//	store := storage.NewStore(driver, "smartm_", logger)
//	mgr := sync.NewManager(store, sync.NewSimulatedRemote(1500*time.Millisecond, 0.9))
//
//	mgr.MarkEntityForSync(ctx, sync.EntityEquipment, 7)
//	ok := mgr.PerformSync(ctx, nil, sync.ModeOnline)
package sync
