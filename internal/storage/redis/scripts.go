package redis

const (
	// saveWalletScript atomically sets the balance and prepends journal entries
	saveWalletScript = `
local wallet_key = KEYS[1]    -- {prefix}:wallet
local journal_key = KEYS[2]   -- {prefix}:wallet:journal

local total_tokens = ARGV[1]
local updated_at = ARGV[2]
local journal_limit = tonumber(ARGV[3])

redis.call('HSET', wallet_key,
  'total_tokens', total_tokens,
  'updated_at', updated_at
)

-- Entries arrive oldest first; the list is kept newest first
for i = 4, #ARGV do
  redis.call('LPUSH', journal_key, ARGV[i])
end

if journal_limit > 0 then
  redis.call('LTRIM', journal_key, 0, journal_limit - 1)
end

return redis.call('LLEN', journal_key)
`

	// replaceUsageScript atomically swaps the daily buckets and session history
	replaceUsageScript = `
local daily_key = KEYS[1]      -- {prefix}:usage:daily
local sessions_key = KEYS[2]   -- {prefix}:usage:sessions
local marker_key = KEYS[3]     -- {prefix}:usage:saved

local day_count = tonumber(ARGV[1])

redis.call('DEL', daily_key, sessions_key)

-- ARGV[2 .. 2*day_count+1] are day/minutes pairs
for i = 0, day_count - 1 do
  local day = ARGV[2 + i * 2]
  local minutes = ARGV[3 + i * 2]
  redis.call('HSET', daily_key, day, minutes)
end

-- The remainder are session records, oldest first
for i = 2 + day_count * 2, #ARGV do
  redis.call('RPUSH', sessions_key, ARGV[i])
end

redis.call('SET', marker_key, '1')
return 'OK'
`
)
