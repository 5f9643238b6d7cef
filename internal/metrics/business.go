package metrics

// SetProjectsTotal sets total projects gauge
func (m *Metrics) SetProjectsTotal(count int64) {
	m.safeExecute("SetProjectsTotal", func() {
		m.ProjectsTotal.Set(float64(count))
	})
}

// SetTasksTotal sets the open and completed task gauges
func (m *Metrics) SetTasksTotal(open, completed int64) {
	m.safeExecute("SetTasksTotal", func() {
		m.TasksTotal.WithLabelValues("open").Set(float64(open))
		m.TasksTotal.WithLabelValues("completed").Set(float64(completed))
	})
}

func (m *Metrics) SetRunningTimers(count int64) {
	m.safeExecute("SetRunningTimers", func() {
		m.RunningTimers.Set(float64(count))
	})
}

// RecordTaskTransition counts one task lifecycle event such as status_changed or task_approved
func (m *Metrics) RecordTaskTransition(event string) {
	m.safeExecute("RecordTaskTransition", func() {
		m.TaskTransitionsTotal.WithLabelValues(event).Inc()
	})
}

// RecordAutomationExecution counts one rule execution
func (m *Metrics) RecordAutomationExecution(success bool) {
	m.safeExecute("RecordAutomationExecution", func() {
		result := "success"
		if !success {
			result = "failure"
		}
		m.AutomationExecutions.WithLabelValues(result).Inc()
	})
}

func (m *Metrics) IncrementAutomationDropped() {
	m.safeExecute("IncrementAutomationDropped", func() {
		m.AutomationDropped.Inc()
	})
}

func (m *Metrics) RecordNotifications(kind string, count int) {
	m.safeExecute("RecordNotifications", func() {
		m.NotificationsCreated.WithLabelValues(kind).Add(float64(count))
	})
}

func (m *Metrics) RecordChangeEvent(table, op string) {
	m.safeExecute("RecordChangeEvent", func() {
		m.ChangeEventsPublished.WithLabelValues(table, op).Inc()
	})
}

// AddChangeSubscribers moves the live subscriber gauge by delta
func (m *Metrics) AddChangeSubscribers(delta int) {
	m.safeExecute("AddChangeSubscribers", func() {
		m.ChangeSubscribers.Add(float64(delta))
	})
}
