package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow definitions, versioned by (name, version). saved_at orders
			-- versions so "latest" always means most-recently-saved.
			CREATE TABLE flow_definitions (
				name VARCHAR(255) NOT NULL,
				version VARCHAR(100) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				flow_type VARCHAR(50) NOT NULL DEFAULT 'manual',
				nodes JSONB NOT NULL,
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				saved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (name, version)
			);

			CREATE INDEX idx_flow_definitions_saved_at ON flow_definitions(name, saved_at);

			-- Workflow instances
			CREATE TABLE instances (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				version VARCHAR(100) NOT NULL DEFAULT '',
				current_state VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				history JSONB NOT NULL DEFAULT '[]',
				error_message TEXT NOT NULL DEFAULT '',
				started_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_instances_workflow_id ON instances(workflow_id);
			CREATE INDEX idx_instances_status ON instances(status);
			CREATE INDEX idx_instances_started_by ON instances(started_by);
			CREATE INDEX idx_instances_created_at ON instances(created_at);

			-- Human tasks attached to instances
			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				instance_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				assignee VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_tasks_instance_id ON tasks(instance_id);
			CREATE INDEX idx_tasks_assignee ON tasks(assignee);
			CREATE INDEX idx_tasks_status ON tasks(status);
		`,
	}
}
