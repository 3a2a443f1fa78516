package store

const Schema = `
CREATE TABLE IF NOT EXISTS queue_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	canonical_id TEXT UNIQUE NOT NULL,
	artist TEXT NOT NULL,
	album TEXT,
	title TEXT,
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	score REAL,
	source TEXT NOT NULL,
	similar_to TEXT,
	source_track TEXT,
	cover_url TEXT,
	year INTEGER,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	processed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_queue_items_status ON queue_items(status);
CREATE INDEX IF NOT EXISTS idx_queue_items_source ON queue_items(source);

CREATE TABLE IF NOT EXISTS processed_recordings (
	canonical_id TEXT PRIMARY KEY,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS catalog_artists (
	name_lower TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	external_id TEXT,
	last_synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS discovered_artists (
	name_lower TEXT PRIMARY KEY,
	discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS wishlist_items (
	id TEXT PRIMARY KEY,
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	type TEXT NOT NULL,
	year INTEGER,
	canonical_id TEXT,
	source TEXT,
	cover_url TEXT,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	processed_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_wishlist_items_identity
	ON wishlist_items(LOWER(artist), LOWER(album), type);

CREATE TABLE IF NOT EXISTS download_tasks (
	id TEXT PRIMARY KEY,
	wishlist_item_id TEXT NOT NULL,
	wishlist_key TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	search_query TEXT,
	search_results TEXT,
	selection_expires_at DATETIME,
	skipped_usernames TEXT,
	peer_username TEXT,
	peer_directory TEXT,
	file_count INTEGER,
	expected_track_count INTEGER,
	quality_tier TEXT,
	quality_format TEXT,
	quality_bit_rate INTEGER,
	quality_bit_depth INTEGER,
	quality_sample_rate INTEGER,
	download_path TEXT,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	queued_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	completed_at DATETIME,
	organized_at DATETIME,

	FOREIGN KEY (wishlist_item_id) REFERENCES wishlist_items(id)
);

-- wishlist_key is unique only while the task is pending or active; a
-- completed/failed task frees the key for a future requeue.
CREATE UNIQUE INDEX IF NOT EXISTS idx_download_tasks_active_key ON download_tasks(wishlist_key)
WHERE status NOT IN ('completed', 'failed');

CREATE INDEX IF NOT EXISTS idx_download_tasks_status ON download_tasks(status);
CREATE INDEX IF NOT EXISTS idx_download_tasks_peer ON download_tasks(peer_username, peer_directory);

CREATE TABLE IF NOT EXISTS job_runs (
	name TEXT PRIMARY KEY,
	cron_expr TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'idle',
	aborted BOOLEAN NOT NULL DEFAULT 0,
	last_run_at DATETIME,
	last_error TEXT,
	next_run_at DATETIME,
	run_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
