package store

// schema contains the SQL statements to create the label index schema.
const schema = `
-- Packages table
CREATE TABLE IF NOT EXISTS packages (
    pkg_path TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    module   TEXT,
    dir      TEXT NOT NULL,
    is_main  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_packages_module ON packages(module);

-- Labels table
CREATE TABLE IF NOT EXISTS labels (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    pkg_path  TEXT NOT NULL,
    name      TEXT NOT NULL,
    kind      TEXT NOT NULL,
    signature TEXT NOT NULL,
    file      TEXT NOT NULL,
    line      INTEGER NOT NULL,
    FOREIGN KEY (pkg_path) REFERENCES packages(pkg_path)
);

CREATE INDEX IF NOT EXISTS idx_labels_name ON labels(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_labels_unique ON labels(pkg_path, name);

-- Attachments table
CREATE TABLE IF NOT EXISTS attachments (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    label_id  INTEGER NOT NULL,
    pkg_path  TEXT NOT NULL,
    item      TEXT NOT NULL,
    item_kind TEXT NOT NULL,
    path      TEXT NOT NULL,
    file      TEXT NOT NULL,
    line      INTEGER NOT NULL,
    FOREIGN KEY (label_id) REFERENCES labels(id),
    FOREIGN KEY (pkg_path) REFERENCES packages(pkg_path)
);

CREATE INDEX IF NOT EXISTS idx_attachments_label ON attachments(label_id);
CREATE INDEX IF NOT EXISTS idx_attachments_pkg ON attachments(pkg_path);

-- Metadata table for index info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
