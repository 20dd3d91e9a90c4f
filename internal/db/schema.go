package db

// schema - полная схема базы данных
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email         TEXT,
    username      TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    avatar_url    TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    telegram_id   BIGINT UNIQUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email)) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS password_resets (
    token_hash TEXT PRIMARY KEY,
    user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ NOT NULL,
    used_at    TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
    id          UUID PRIMARY KEY,
    user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    keywords    TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL,
    condition   TEXT NOT NULL,
    swap_status TEXT NOT NULL DEFAULT 'pending',
    listed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_items_user ON items (user_id);
CREATE INDEX IF NOT EXISTS idx_items_listed_at ON items (listed_at DESC);

CREATE TABLE IF NOT EXISTS item_images (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    item_id     UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    url         TEXT NOT NULL,
    preview_url TEXT NOT NULL DEFAULT '',
    public_id   TEXT NOT NULL DEFAULT '',
    is_main     BOOLEAN NOT NULL DEFAULT FALSE,
    position    INT NOT NULL DEFAULT 0,
    metadata    JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_item_images_item ON item_images (item_id, position);

CREATE TABLE IF NOT EXISTS swap_requests (
    id                UUID PRIMARY KEY,
    item_id           UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    swap_with_item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    requester_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    owner_id          UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status            TEXT NOT NULL DEFAULT 'pending'
                      CHECK (status IN ('pending', 'swapped', 'rejected', 'canceled')),
    message           TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_swap_requests_item ON swap_requests (item_id);
CREATE INDEX IF NOT EXISTS idx_swap_requests_requester ON swap_requests (requester_id);
CREATE INDEX IF NOT EXISTS idx_swap_requests_owner ON swap_requests (owner_id);

CREATE TABLE IF NOT EXISTS favorites (
    id         UUID PRIMARY KEY,
    user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    item_id    UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, item_id)
);
`

// migrations применяются по порядку после создания схемы.
// Каждая миграция должна быть идемпотентной. Новые добавлять в конец.
var migrations = []string{
	// Только один ожидающий запрос на одну и ту же пару вещей
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_swap_requests_pending_pair
	     ON swap_requests (item_id, swap_with_item_id) WHERE status = 'pending'`,
}
