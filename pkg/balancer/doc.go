// Package balancer coordinates the key pool, the audit log, and the
// metrics collector behind one façade.
//
// The Manager is the write path for every weight change. It applies the
// change to the pool first and records it in the audit log second, so a
// storage outage on the audit side never blocks traffic. An audit
// failure after a successful pool change is reported to the caller but
// the pool change stands.
//
// Health reports (ReportSuccess, ReportFailure) adjust effective
// weights inside the pool without writing audit records. The audit log
// tracks the configured weight, which only operators, presets, config
// reloads, the optimizer, and rollbacks change.
//
// # Basic Usage
//
//	mgr := balancer.NewManager(pool, auditLog, collector)
//	key := mgr.Next()
//	if key == nil {
//		// no eligible key, fail the request upstream
//	}
//	defer func() {
//		if requestFailed {
//			mgr.ReportFailure(key.ID)
//		} else {
//			mgr.ReportSuccess(key.ID)
//		}
//	}()
package balancer
