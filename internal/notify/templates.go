package notify

const debtCreatedSubject = "New debt registered: {{ subject }}"

const debtCreatedHTML = `<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h1 style="background-color: #2196F3; color: white; padding: 20px; text-align: center;">New debt registered</h1>
      <p>Hello {{ name | escape }},</p>
      <p>A new debt has been registered in your name.</p>
      <p><strong>Subject:</strong> {{ subject | escape }}<br>
         <strong>Amount:</strong> {{ amount }} {{ currency }}</p>
      <p>You can review and pay it here:</p>
      <p style="text-align: center;"><a href="{{ debtor_url }}">View my debt</a></p>
      <p style="color: #666; font-size: 12px;">This is an automated notification. Please do not reply.</p>
    </div>
  </body>
</html>`

const paymentConfirmedSubject = "Payment confirmed: {{ subject }}"

const paymentConfirmedHTML = `<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h1 style="background-color: #4CAF50; color: white; padding: 20px; text-align: center;">Payment confirmed</h1>
      <p>Hello {{ name | escape }},</p>
      <p>We have received your payment.</p>
      <p><strong>Subject:</strong> {{ subject | escape }}<br>
         <strong>Amount paid:</strong> {{ amount }} {{ currency }}<br>
         <strong>Payment ID:</strong> {{ payment_id }}</p>
      <p>Thank you.</p>
      <p style="color: #666; font-size: 12px;">This is an automated receipt. Please do not reply.</p>
    </div>
  </body>
</html>`
