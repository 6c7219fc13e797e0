package redis

const (
	// putPendingBreakScript atomically stores a pending break and indexes it
	putPendingBreakScript = `
local item_key = KEYS[1]      -- punchclock:outbox:{key}
local index_key = KEYS[2]     -- punchclock:outbox:index

local key = ARGV[1]
local session_id = ARGV[2]
local kind = ARGV[3]
local started_at = ARGV[4]
local ended_at = ARGV[5]
local begin_sent = ARGV[6]
local attempts = ARGV[7]
local created_at = ARGV[8]
local score = tonumber(ARGV[9])
local ttl_seconds = tonumber(ARGV[10])

-- Keep the original created_at across updates
local existing_created = redis.call('HGET', item_key, 'created_at')
if existing_created then
  created_at = existing_created
end

redis.call('HSET', item_key,
  'key', key,
  'session_id', session_id,
  'kind', kind,
  'started_at', started_at,
  'ended_at', ended_at,
  'begin_sent', begin_sent,
  'attempts', attempts,
  'created_at', created_at
)

-- Index ordered by break start
redis.call('ZADD', index_key, score, key)

-- Pending pairs older than the TTL are abandoned
if ttl_seconds > 0 then
  redis.call('EXPIRE', item_key, ttl_seconds)
end

return 'OK'
`

	// deletePendingBreakScript atomically removes a pending break and its index entry
	deletePendingBreakScript = `
local item_key = KEYS[1]
local index_key = KEYS[2]
local key = ARGV[1]

redis.call('DEL', item_key)
redis.call('ZREM', index_key, key)

return 'OK'
`
)
