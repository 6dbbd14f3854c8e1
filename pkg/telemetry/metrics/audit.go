package metrics

// RecordAuditRecord counts an audit record written to the change log.
func (c *Collector) RecordAuditRecord(operation, source string) {
	if !c.config.Enabled {
		return
	}
	c.auditRecordsTotal.WithLabelValues(operation, source).Inc()
}
