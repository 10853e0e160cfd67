// Package withdrawalescrow implements the donor-governed withdrawal escrow
// inside the donor-governance context.
//
// A campaign creator asks to withdraw part of the funds raised. Donors vote
// on the request with weight equal to what they gave, an administrator
// reviews the outcome, and an approved request is paid out exactly once
// through the payment gateway. Rejecting a request may cancel the campaign,
// in which case every donor receives a pro-rata refund of the funds still
// held in escrow.
//
// Business rules live in the domain and application layers. Persistence,
// payment, dedup and HTTP concerns sit behind ports and adapters.
package withdrawalescrow
