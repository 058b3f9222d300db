package workq

import "github.com/go-redis/redis/v8"

// requeueScript implements the atomic three-way move between a source
// sublist and either the unprocessed or failed sublist.
//
// KEYS[1] - source sublist (working or failed)
// KEYS[2] - ok destination sublist (always the unprocessed sublist)
// KEYS[3] - fail destination sublist (always the failed sublist)
// ARGV[1] - item key
// ARGV[2] - requeue limit
// ARGV[3] - place: "0" pushes onto the head, "1" onto the tail
// ARGV[4] - error string to attach to last_error (may be empty)
// ARGV[5] - "1" to HINCRBY process_count, "0" to leave it alone
// ARGV[6] - current unix time in seconds, used to stamp time_enqueued
//
// Returns 0 if the item was not present in the source sublist (already
// moved by a concurrent caller), 1 otherwise.
var requeueScript = redis.NewScript(`
local source = KEYS[1]
local ok_dest = KEYS[2]
local fail_dest = KEYS[3]

local item_key = ARGV[1]
local requeue_limit = tonumber(ARGV[2])
local place = ARGV[3]
local err_msg = ARGV[4]
local increment = ARGV[5] == "1"
local now = ARGV[6]

local removed = redis.call("LREM", source, -1, item_key)
if removed == 0 then
	return 0
end

local meta_key = "meta-" .. item_key

if increment then
	redis.call("HINCRBY", meta_key, "process_count", 1)
end

local process_count = tonumber(redis.call("HGET", meta_key, "process_count")) or 0

if process_count > requeue_limit then
	redis.call("HINCRBY", meta_key, "bail_count", 1)
	redis.call("HSET", meta_key, "last_error", err_msg)
	redis.call("LPUSH", fail_dest, item_key)
	return 1
end

redis.call("HSET", meta_key, "time_enqueued", now)
if err_msg ~= "" then
	redis.call("HSET", meta_key, "last_error", err_msg)
end

if place == "1" then
	-- tail placement: push directly onto the pop side (RPOP), so the
	-- item is the very next one claimed, as if it never left.
	redis.call("RPUSH", ok_dest, item_key)
else
	-- head placement: push onto the newest side, i.e. to the back of
	-- the FIFO line, behind every item already waiting.
	redis.call("LPUSH", ok_dest, item_key)
end

return 1
`)

// placeHead and placeTail are the two valid values for requeueScript's
// ARGV[3], matching the spec's place encoding (0=head, 1=tail). "Head"
// sends an item to the back of the FIFO line; "tail" makes it the very
// next item a consumer claims.
const (
	placeHead = "0"
	placeTail = "1"
)
