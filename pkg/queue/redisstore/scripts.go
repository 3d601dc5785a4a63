package redisstore

import "github.com/redis/go-redis/v9"

// Every state change runs as a script so the status check, the Hash update
// and the index moves happen atomically.

// promoteScript moves up to ARGV[2] due ids from the scheduled set to the ready set.
// KEYS: scheduled, ready. ARGV: now, batch, job prefix.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	local r = redis.call('HGET', ARGV[3] .. id, 'rank')
	if r then
		redis.call('ZADD', KEYS[2], r, id)
	end
end
return #ids
`)

// reserveScript claims an eligible record.
// KEYS: job, processing. ARGV: id, now, owner, counts prefix, scheduled prefix, ready prefix.
var reserveScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if st ~= 'pending' and st ~= 'delayed' then
	return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'available_at')) > tonumber(ARGV[2]) then
	return 0
end
local q = redis.call('HGET', KEYS[1], 'queue')
redis.call('HSET', KEYS[1], 'status', 'processing', 'reserved_at', ARGV[2], 'reserved_by', ARGV[3], 'updated_at', ARGV[2])
redis.call('ZREM', ARGV[5] .. q, ARGV[1])
redis.call('ZREM', ARGV[6] .. q, ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('HINCRBY', ARGV[4] .. q, st, -1)
redis.call('HINCRBY', ARGV[4] .. q, 'processing', 1)
return 1
`)

// settleScript moves a processing record to its next status.
// KEYS: job, processing.
// ARGV: id, status, attempts, now, exception, available_at ('' keeps it), index score, counts prefix,
// target index, '1' when the target index is a prefix the record queue completes.
var settleScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'processing' then
	return 0
end
local q = redis.call('HGET', KEYS[1], 'queue')
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'attempts', ARGV[3], 'exception', ARGV[5],
	'reserved_at', '', 'reserved_by', '', 'updated_at', ARGV[4])
if ARGV[6] ~= '' then
	redis.call('HSET', KEYS[1], 'available_at', ARGV[6])
end
local target = ARGV[9]
if ARGV[10] == '1' then
	target = target .. q
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZADD', target, ARGV[7], ARGV[1])
redis.call('HINCRBY', ARGV[8] .. q, 'processing', -1)
redis.call('HINCRBY', ARGV[8] .. q, ARGV[2], 1)
return 1
`)

// retryScript returns a failed record to pending with a fresh attempt budget.
// KEYS: job, failed. ARGV: id, now, counts prefix, queue filter ('' for any), scheduled prefix.
var retryScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'failed' then
	return 0
end
local q = redis.call('HGET', KEYS[1], 'queue')
if ARGV[4] ~= '' and q ~= ARGV[4] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', 'pending', 'attempts', 0, 'exception', '',
	'available_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZADD', ARGV[5] .. q, ARGV[2], ARGV[1])
redis.call('HINCRBY', ARGV[3] .. q, 'failed', -1)
redis.call('HINCRBY', ARGV[3] .. q, 'pending', 1)
return 1
`)

// deleteScript removes a terminal record.
// KEYS: job, completed, failed.
// ARGV: id, status filter ('' for any terminal), queue filter ('' for any), counts prefix.
var deleteScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if st ~= 'completed' and st ~= 'failed' then
	return 0
end
if ARGV[2] ~= '' and st ~= ARGV[2] then
	return 0
end
local q = redis.call('HGET', KEYS[1], 'queue')
if ARGV[3] ~= '' and q ~= ARGV[3] then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('HINCRBY', ARGV[4] .. q, st, -1)
return 1
`)
