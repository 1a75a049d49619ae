package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Function models (aggregate roots)
			CREATE TABLE function_models (
				model_id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				version VARCHAR(50) NOT NULL,
				current_version VARCHAR(50) NOT NULL,
				version_count INT NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'archived', 'error')),
				metadata JSONB,
				permissions JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				last_saved_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE,
				deleted_by VARCHAR(255)
			);

			CREATE INDEX idx_function_models_status ON function_models(status);
			CREATE INDEX idx_function_models_created_at ON function_models(created_at);
			CREATE INDEX idx_function_models_deleted_at ON function_models(deleted_at);
			CREATE INDEX idx_function_models_owner ON function_models((permissions->>'owner'));

			-- Diagram nodes; exactly one type-specific payload column is
			-- non-null, matching node_type.
			CREATE TABLE model_nodes (
				model_id UUID NOT NULL REFERENCES function_models(model_id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL CHECK (node_type IN
					('ioNode', 'stageNode', 'tetherNode', 'kbNode', 'functionModelContainer')),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL DEFAULT 'draft',
				execution_type VARCHAR(50) NOT NULL DEFAULT 'sequential',
				dependencies JSONB NOT NULL DEFAULT '[]',
				metadata JSONB,
				visual_properties JSONB,
				io_data JSONB,
				stage_data JSONB,
				tether_data JSONB,
				kb_data JSONB,
				container_data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (model_id, node_id),
				CHECK (
					(io_data IS NOT NULL)::int + (stage_data IS NOT NULL)::int +
					(tether_data IS NOT NULL)::int + (kb_data IS NOT NULL)::int +
					(container_data IS NOT NULL)::int = 1
				)
			);

			CREATE INDEX idx_model_nodes_model_id ON model_nodes(model_id);
			CREATE INDEX idx_model_nodes_type ON model_nodes(node_type);

			-- Typed relationships; parent-child links are stored as two
			-- inverse rows for bidirectional lookup.
			CREATE TABLE model_relationships (
				model_id UUID NOT NULL REFERENCES function_models(model_id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(50) NOT NULL,
				target_handle VARCHAR(50) NOT NULL,
				source_node_type VARCHAR(50) NOT NULL,
				target_node_type VARCHAR(50) NOT NULL,
				relationship_type VARCHAR(50) NOT NULL CHECK (relationship_type IN ('parent-child', 'sibling')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (model_id, id)
			);

			CREATE INDEX idx_model_relationships_model_id ON model_relationships(model_id);
			CREATE INDEX idx_model_relationships_source ON model_relationships(source_node_id);
			CREATE INDEX idx_model_relationships_target ON model_relationships(target_node_id);
			CREATE UNIQUE INDEX idx_model_relationships_unique
				ON model_relationships(model_id, source_node_id, source_handle, target_node_id, target_handle);

			-- Immutable version records with full-state snapshots
			CREATE TABLE model_versions (
				version_id UUID PRIMARY KEY,
				model_id UUID NOT NULL REFERENCES function_models(model_id) ON DELETE CASCADE,
				version_number INT NOT NULL,
				version VARCHAR(50) NOT NULL,
				change_summary TEXT NOT NULL DEFAULT '',
				author_id VARCHAR(255) NOT NULL DEFAULT '',
				snapshot JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (model_id, version_number)
			);

			CREATE INDEX idx_model_versions_model_id ON model_versions(model_id);
			CREATE INDEX idx_model_versions_created_at ON model_versions(created_at);

			-- Audit trail
			CREATE TABLE audit_entries (
				audit_id UUID PRIMARY KEY,
				entity_type VARCHAR(50) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				action VARCHAR(50) NOT NULL CHECK (action IN ('create', 'update', 'delete')),
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				old_data JSONB,
				new_data JSONB,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				details JSONB
			);

			CREATE INDEX idx_audit_entries_entity ON audit_entries(entity_type, entity_id);
			CREATE INDEX idx_audit_entries_timestamp ON audit_entries(timestamp);
		`,
	}
}
