package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE scenarios (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_scenarios_enabled ON scenarios(enabled);
			CREATE INDEX idx_scenarios_deleted_at ON scenarios(deleted_at);

			CREATE TABLE scenario_triggers (
				id VARCHAR(255) PRIMARY KEY,
				scenario_id VARCHAR(255) NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
				event_code VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_scenario_triggers_scenario_id ON scenario_triggers(scenario_id);
			CREATE INDEX idx_scenario_triggers_event_code ON scenario_triggers(event_code);

			CREATE TABLE scenario_elements (
				id VARCHAR(255) PRIMARY KEY,
				scenario_id VARCHAR(255) NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
				type VARCHAR(50) NOT NULL,
				options JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_scenario_elements_scenario_id ON scenario_elements(scenario_id);
			CREATE INDEX idx_scenario_elements_deleted_at ON scenario_elements(deleted_at);

			-- Exactly one source per edge
			CREATE TABLE scenario_edges (
				id BIGSERIAL PRIMARY KEY,
				scenario_id VARCHAR(255) NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
				source_trigger_id VARCHAR(255) REFERENCES scenario_triggers(id) ON DELETE CASCADE,
				source_element_id VARCHAR(255) REFERENCES scenario_elements(id) ON DELETE CASCADE,
				target_element_id VARCHAR(255) NOT NULL REFERENCES scenario_elements(id) ON DELETE CASCADE,
				positive BOOLEAN,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				CHECK ((source_trigger_id IS NULL) <> (source_element_id IS NULL))
			);

			CREATE INDEX idx_scenario_edges_source_trigger ON scenario_edges(source_trigger_id);
			CREATE INDEX idx_scenario_edges_source_element ON scenario_edges(source_element_id);
		`,
		2: `
			-- No origin CHECK: the engine deletes jobs with neither trigger_id nor element_id
			CREATE TABLE scenario_jobs (
				id VARCHAR(255) PRIMARY KEY,
				scenario_id VARCHAR(255),
				trigger_id VARCHAR(255),
				element_id VARCHAR(255),
				parameters JSONB NOT NULL DEFAULT '{}',
				result JSONB,
				state VARCHAR(50) NOT NULL CHECK (state IN ('created', 'scheduled', 'started', 'finished', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				continued_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_scenario_jobs_state ON scenario_jobs(state, created_at);
			CREATE INDEX idx_scenario_jobs_finished_at ON scenario_jobs(finished_at);
		`,
	}
}
