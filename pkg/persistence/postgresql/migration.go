package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				project_id VARCHAR(255) NOT NULL,
				lock_version INTEGER NOT NULL DEFAULT 0,
				triggers JSONB NOT NULL DEFAULT '[]',
				jobs JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_project_id ON workflows(project_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE snapshots (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				name VARCHAR(255) NOT NULL DEFAULT '',
				lock_version INTEGER NOT NULL DEFAULT 0,
				triggers JSONB NOT NULL DEFAULT '[]',
				jobs JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_snapshots_workflow_id ON snapshots(workflow_id);
			CREATE UNIQUE INDEX idx_snapshots_workflow_version ON snapshots(workflow_id, lock_version);

			CREATE TABLE dataclips (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				body JSONB,
				wiped_at TIMESTAMP WITH TIME ZONE,
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_dataclips_project_id ON dataclips(project_id);

			CREATE TABLE work_orders (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				trigger_id VARCHAR(255),
				dataclip_id UUID NOT NULL REFERENCES dataclips(id),
				snapshot_id UUID NOT NULL REFERENCES snapshots(id),
				state VARCHAR(50) NOT NULL,
				last_activity TIMESTAMP WITH TIME ZONE NOT NULL,
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_work_orders_workflow_id ON work_orders(workflow_id);
			CREATE INDEX idx_work_orders_state ON work_orders(state);
			CREATE INDEX idx_work_orders_inserted_at ON work_orders(inserted_at);

			CREATE TABLE runs (
				id UUID PRIMARY KEY,
				work_order_id UUID NOT NULL REFERENCES work_orders(id),
				starting_trigger_id VARCHAR(255),
				starting_job_id VARCHAR(255),
				created_by_id VARCHAR(255),
				dataclip_id UUID NOT NULL REFERENCES dataclips(id),
				snapshot_id UUID NOT NULL REFERENCES snapshots(id),
				priority VARCHAR(20) NOT NULL DEFAULT 'normal',
				state VARCHAR(50) NOT NULL,
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_runs_work_order_id ON runs(work_order_id);
			CREATE INDEX idx_runs_state ON runs(state);
			CREATE INDEX idx_runs_inserted_at ON runs(inserted_at);

			CREATE TABLE steps (
				id UUID PRIMARY KEY,
				job_id VARCHAR(255) NOT NULL,
				input_dataclip_id UUID REFERENCES dataclips(id),
				output_dataclip_id UUID REFERENCES dataclips(id),
				state VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_steps_job_id ON steps(job_id);

			CREATE TABLE run_steps (
				run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
				inserted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (run_id, step_id)
			);

			CREATE INDEX idx_run_steps_step_id ON run_steps(step_id);
		`,
	}
}
