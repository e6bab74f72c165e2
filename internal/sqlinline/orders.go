package sqlinline

const orderColumns = `
  id::text,
  email,
  order_type,
  analysis_id::text,
  prompt_id::text,
  video_file_url,
  video_duration,
  payment_status,
  processing_status,
  amount_paid,
  currency,
  payment_reference,
  video_job_id,
  video_job_status,
  processed_video_url,
  thumbnail_url,
  error_message,
  retry_count,
  processing_duration_ms,
  test_mode,
  created_at,
  processing_started_at,
  processing_completed_at,
  last_retry_at`

const QInsertOrder = `--sql bdf978a9-b71e-4b69-9222-bf324e775d36
insert into orders (
  id, email, order_type, analysis_id, prompt_id, video_file_url, video_duration,
  payment_status, processing_status, amount_paid, currency, test_mode
)
values (
  $1::uuid, $2::text, $3::text, $4::uuid, $5::uuid, $6::text, $7::text,
  $8::text, $9::text, $10::bigint, $11::text, $12::boolean
)
returning created_at;
`

const QSelectOrderByID = `--sql 36aa687a-3e8d-48c2-9f5d-876d2c8cda4b
select` + orderColumns + `
from orders
where id = $1::uuid;
`

const QDeleteOrder = `--sql 23fa835e-5784-4fce-88a3-07291df4f59f
delete from orders
where id = $1::uuid;
`

// QUpdateOrderPayment never lets a late failure overwrite a completed payment;
// zero affected rows on an existing order means that guard fired.
const QUpdateOrderPayment = `--sql fe1c2cf8-150e-4114-9c17-b28da3aa7270
update orders
set payment_status = $2::text,
    payment_reference = coalesce(nullif($3::text, ''), payment_reference),
    amount_paid = case when $4::bigint > 0 then $4::bigint else amount_paid end,
    currency = coalesce(nullif(upper($5::text), ''), currency)
where id = $1::uuid
  and not (payment_status = 'completed' and $2::text = 'failed');
`

const QSelectOrderProcessingState = `--sql 1adf8b9d-cb2e-45a0-8269-c38011c0c78c
select processing_status, retry_count
from orders
where id = $1::uuid;
`

// QMarkOrderProcessing only succeeds from pending; zero affected rows means
// the order was missing or in another state.
const QMarkOrderProcessing = `--sql 8c140c51-6397-4999-915f-5b33b712539a
update orders
set processing_status = 'processing',
    processing_started_at = now(),
    processing_completed_at = null,
    error_message = null
where id = $1::uuid
  and processing_status = 'pending';
`

const QRecordOrderJob = `--sql b21cdd0d-908d-4e89-adc2-4edac9b387e7
update orders
set video_job_id = $2::text,
    video_job_status = $3::text
where id = $1::uuid
  and processing_status = 'processing';
`

const QUpdateOrderJobStatus = `--sql de399325-0911-498f-86c8-4ea778be7b35
update orders
set video_job_status = $2::text
where id = $1::uuid;
`

const QCompleteOrder = `--sql 52d555de-454b-40a2-a0de-38af5f445e40
update orders
set processing_status = 'completed',
    processed_video_url = $2::text,
    thumbnail_url = nullif($3::text, ''),
    processing_duration_ms = $4::bigint,
    processing_completed_at = now(),
    error_message = null
where id = $1::uuid
  and processing_status = 'processing'
  and $2::text <> '';
`

const QFailOrder = `--sql de128ce1-09d2-4a1e-b834-92413ff5ae5a
update orders
set processing_status = 'failed',
    error_message = $2::text,
    processing_completed_at = now()
where id = $1::uuid
  and processing_status = 'processing';
`

// QResetOrderForRetry is the compare-and-swap guarding concurrent retries:
// only one caller can move a given failed order back to pending.
const QResetOrderForRetry = `--sql 27bae6f8-47ad-449f-8f7e-e6ce5b0c168b
update orders
set processing_status = 'pending',
    retry_count = retry_count + 1,
    last_retry_at = now(),
    error_message = null,
    video_job_id = '',
    video_job_status = '',
    processing_completed_at = null
where id = $1::uuid
  and processing_status = 'failed'
  and retry_count < $2::integer
returning retry_count;
`
