package jobxredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/raffleport/relay/pkg/jobx"
)

// RedisQueue implements jobx.Queue on Redis. Ready entries live in a list,
// delayed entries in a scheduled sorted set, and leased entries in an
// active sorted set scored by lease deadline, so claim-and-lease stays
// atomic across process restarts.
type RedisQueue struct {
	rdb  *redis.Client
	opts Options
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(rdb *redis.Client, options ...Option) *RedisQueue {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &RedisQueue{rdb: rdb, opts: opts}
}

func (q *RedisQueue) queueKey(name string) string {
	return fmt.Sprintf("%s:queue:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) scheduledKey(name string) string {
	return fmt.Sprintf("%s:scheduled:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) activeKey(name string) string {
	return fmt.Sprintf("%s:active:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) completedKey(name string) string {
	return fmt.Sprintf("%s:completed:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) failedKey(name string) string {
	return fmt.Sprintf("%s:failed:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", q.opts.KeyPrefix, id)
}

func (q *RedisQueue) newInfo(job jobx.Job) (jobx.JobInfo, string) {
	id := job.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	return jobx.JobInfo{
		ID:          id,
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     job.Payload,
		Status:      jobx.JobStatusPending,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, id
}

// Enqueue admits a job to the ready queue.
func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	info, id := q.newInfo(job)

	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	pipe := q.rdb.Pipeline()
	pipe.Set(ctx, q.jobKey(id), data, 0)
	pipe.LPush(ctx, q.queueKey(job.Queue), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).WithDetail("queue", job.Queue)
	}

	return id, nil
}

// EnqueueDelayed admits a job to the scheduled set with a future eligibility time.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	info, id := q.newInfo(job)

	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	score := float64(time.Now().UTC().Add(delay).UnixMilli())

	pipe := q.rdb.Pipeline()
	pipe.Set(ctx, q.jobKey(id), data, 0)
	pipe.ZAdd(ctx, q.scheduledKey(job.Queue), redis.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).
			WithDetail("queue", job.Queue).
			WithDetail("delay", delay.String())
	}

	return id, nil
}

// GetJob retrieves a queue entry by id.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
		}
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}

	return &info, nil
}

func (q *RedisQueue) saveInfo(ctx context.Context, info *jobx.JobInfo, ttl time.Duration) error {
	info.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", info.ID)
	}
	return q.rdb.Set(ctx, q.jobKey(info.ID), data, ttl).Err()
}

// Dequeue blocks until an entry is ready on one of the queues or timeout
// expires, then acquires a processing lease on it.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout, lease time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // timeout, nothing ready
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, redisErrors.NewWithCause(ErrDequeue, err)
	}

	// result[0] is the popped key, result[1] the entry id.
	jobID := result[1]

	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	info.Status = jobx.JobStatusActive
	info.Attempts++
	info.LeaseUntil = now.Add(lease)

	if err := q.saveInfo(ctx, info, 0); err != nil {
		return nil, redisErrors.NewWithCause(ErrDequeue, err).WithDetail("job_id", jobID)
	}

	deadline := float64(info.LeaseUntil.UnixMilli())
	if err := q.rdb.ZAdd(ctx, q.activeKey(info.Queue), redis.Z{Score: deadline, Member: jobID}).Err(); err != nil {
		return nil, redisErrors.NewWithCause(ErrDequeue, err).WithDetail("job_id", jobID)
	}

	return info, nil
}

// Heartbeat pushes an active entry's lease deadline forward.
func (q *RedisQueue) Heartbeat(ctx context.Context, jobID string, lease time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	info.LeaseUntil = time.Now().UTC().Add(lease)
	if err := q.saveInfo(ctx, info, 0); err != nil {
		return redisErrors.NewWithCause(ErrHeartbeat, err).WithDetail("job_id", jobID)
	}

	deadline := float64(info.LeaseUntil.UnixMilli())
	err = q.rdb.ZAddXX(ctx, q.activeKey(info.Queue), redis.Z{Score: deadline, Member: jobID}).Err()
	if err != nil {
		return redisErrors.NewWithCause(ErrHeartbeat, err).WithDetail("job_id", jobID)
	}
	return nil
}

// Complete marks an entry completed, releases its lease and applies the
// queue's completed-retention bound.
func (q *RedisQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	info.Status = jobx.JobStatusCompleted
	info.Result = result
	if err := q.saveInfo(ctx, info, q.opts.CompletedTTL); err != nil {
		return redisErrors.NewWithCause(ErrComplete, err).WithDetail("job_id", jobID)
	}

	pipe := q.rdb.Pipeline()
	pipe.ZRem(ctx, q.activeKey(info.Queue), jobID)
	pipe.LPush(ctx, q.completedKey(info.Queue), jobID)
	if keep := q.opts.RetentionByQueue[info.Queue].Completed; keep > 0 {
		pipe.LTrim(ctx, q.completedKey(info.Queue), 0, keep-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return redisErrors.NewWithCause(ErrComplete, err).WithDetail("job_id", jobID)
	}

	return nil
}

// Fail records a failed attempt and releases the lease. It returns true
// when the entry has attempts left.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string, allowRetry bool) (bool, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	shouldRetry := allowRetry && info.Attempts < info.MaxAttempts
	if shouldRetry {
		info.Status = jobx.JobStatusRetrying
	} else {
		info.Status = jobx.JobStatusFailed
	}
	info.Error = errMsg

	if err := q.saveInfo(ctx, info, 0); err != nil {
		return false, redisErrors.NewWithCause(ErrFail, err).WithDetail("job_id", jobID)
	}

	pipe := q.rdb.Pipeline()
	pipe.ZRem(ctx, q.activeKey(info.Queue), jobID)
	if !shouldRetry {
		pipe.LPush(ctx, q.failedKey(info.Queue), jobID)
		if keep := q.opts.RetentionByQueue[info.Queue].Failed; keep > 0 {
			pipe.LTrim(ctx, q.failedKey(info.Queue), 0, keep-1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, redisErrors.NewWithCause(ErrFail, err).WithDetail("job_id", jobID)
	}

	return shouldRetry, nil
}

// Retry schedules a failed entry for redelivery after delay.
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	score := float64(time.Now().UTC().Add(delay).UnixMilli())
	err = q.rdb.ZAdd(ctx, q.scheduledKey(info.Queue), redis.Z{Score: score, Member: jobID}).Err()
	if err != nil {
		return redisErrors.NewWithCause(ErrRetry, err).WithDetail("job_id", jobID)
	}
	return nil
}

// promoteScript atomically moves delay-expired entries to the ready queue.
var promoteScript = redis.NewScript(`
local scheduled_key = KEYS[1]
local queue_key = KEYS[2]
local now = tonumber(ARGV[1])
local ids = redis.call('ZRANGEBYSCORE', scheduled_key, '-inf', now)
if #ids > 0 then
    for _, id in ipairs(ids) do
        redis.call('LPUSH', queue_key, id)
    end
    redis.call('ZREMRANGEBYSCORE', scheduled_key, '-inf', now)
end
return #ids
`)

// PromoteScheduled moves entries whose eligibility time has passed onto the
// ready queue.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)

	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb,
			[]string{q.scheduledKey(name), q.queueKey(name)},
			now,
		).Err()
		if err != nil && err != redis.Nil {
			return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", name)
		}
	}

	return nil
}

// recoverScript atomically handles lease-expired entries: requeue while the
// recovery bound allows, otherwise abandon as stalled-failed.
var recoverScript = redis.NewScript(`
local active_key = KEYS[1]
local queue_key = KEYS[2]
local failed_key = KEYS[3]
local now = tonumber(ARGV[1])
local bound = tonumber(ARGV[2])
local job_prefix = ARGV[3]
local requeued = {}
local abandoned = {}
local ids = redis.call('ZRANGEBYSCORE', active_key, '-inf', now)
for _, id in ipairs(ids) do
    redis.call('ZREM', active_key, id)
    local raw = redis.call('GET', job_prefix .. id)
    if raw then
        local job = cjson.decode(raw)
        job['recoveries'] = (job['recoveries'] or 0) + 1
        if job['recoveries'] <= bound then
            job['status'] = 'pending'
            redis.call('SET', job_prefix .. id, cjson.encode(job))
            redis.call('LPUSH', queue_key, id)
            table.insert(requeued, id)
        else
            job['status'] = 'stalled'
            job['error'] = 'processing lease expired beyond recovery bound'
            redis.call('SET', job_prefix .. id, cjson.encode(job))
            redis.call('LPUSH', failed_key, id)
            table.insert(abandoned, id)
        end
    end
end
return {requeued, abandoned}
`)

// RecoverStalled requeues lease-expired entries up to the recovery bound
// and abandons the rest.
func (q *RedisQueue) RecoverStalled(ctx context.Context, queues []string) ([]string, []string, error) {
	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)

	var requeued, abandoned []string
	for _, name := range queues {
		res, err := recoverScript.Run(ctx, q.rdb,
			[]string{q.activeKey(name), q.queueKey(name), q.failedKey(name)},
			now, q.opts.RecoveryBound, q.opts.KeyPrefix+":job:",
		).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, nil, redisErrors.NewWithCause(ErrRecover, err).WithDetail("queue", name)
		}

		lists, ok := res.([]interface{})
		if !ok || len(lists) != 2 {
			continue
		}
		requeued = append(requeued, toStrings(lists[0])...)
		abandoned = append(abandoned, toStrings(lists[1])...)
	}

	return requeued, abandoned, nil
}

func toStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Counts returns the live depth of one queue.
func (q *RedisQueue) Counts(ctx context.Context, queue string) (jobx.QueueCounts, error) {
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, q.queueKey(queue))
	delayed := pipe.ZCard(ctx, q.scheduledKey(queue))
	active := pipe.ZCard(ctx, q.activeKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return jobx.QueueCounts{}, redisErrors.NewWithCause(ErrCounts, err).WithDetail("queue", queue)
	}

	return jobx.QueueCounts{
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
	}, nil
}
